package contactclient_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/folio/internal/contactclient"
)

func validForm() contactclient.Form {
	return contactclient.Form{
		Name:    "Ana Lee",
		Email:   "ana@example.com",
		Message: "Interested in a website rebuild, please reach out.",
	}
}

func TestFormValidateAcceptsBoundaryValues(testingT *testing.T) {
	testCases := []struct {
		name string
		form contactclient.Form
	}{
		{name: "typical", form: validForm()},
		{name: "shortest name", form: contactclient.Form{Name: "Al", Email: "al@example.com", Message: strings.Repeat("m", 10)}},
		{name: "longest name", form: contactclient.Form{Name: strings.Repeat("n", 50), Email: "n@example.com", Message: strings.Repeat("m", 1000)}},
		{name: "multibyte characters", form: contactclient.Form{Name: strings.Repeat("é", 50), Email: "e@example.com", Message: strings.Repeat("ж", 1000)}},
	}

	for _, testCase := range testCases {
		testingT.Run(testCase.name, func(subTest *testing.T) {
			require.Empty(subTest, testCase.form.Validate())
		})
	}
}

func TestFormValidateReportsFieldErrors(testingT *testing.T) {
	testCases := []struct {
		name     string
		mutate   func(form *contactclient.Form)
		expected contactclient.FieldErrors
	}{
		{
			name:     "empty name",
			mutate:   func(form *contactclient.Form) { form.Name = "" },
			expected: contactclient.FieldErrors{contactclient.FieldName: "Required field"},
		},
		{
			name:     "short name",
			mutate:   func(form *contactclient.Form) { form.Name = "A" },
			expected: contactclient.FieldErrors{contactclient.FieldName: "Name is too short"},
		},
		{
			name:     "long name",
			mutate:   func(form *contactclient.Form) { form.Name = strings.Repeat("n", 51) },
			expected: contactclient.FieldErrors{contactclient.FieldName: "Name is too long"},
		},
		{
			name:     "malformed email",
			mutate:   func(form *contactclient.Form) { form.Email = "ana.example.com" },
			expected: contactclient.FieldErrors{contactclient.FieldEmail: "Invalid email format"},
		},
		{
			name:     "short message",
			mutate:   func(form *contactclient.Form) { form.Message = "too short" },
			expected: contactclient.FieldErrors{contactclient.FieldMessage: "Message is too short"},
		},
		{
			name:     "long message",
			mutate:   func(form *contactclient.Form) { form.Message = strings.Repeat("m", 1001) },
			expected: contactclient.FieldErrors{contactclient.FieldMessage: "Message is too long"},
		},
		{
			name: "everything empty",
			mutate: func(form *contactclient.Form) {
				*form = contactclient.Form{}
			},
			expected: contactclient.FieldErrors{
				contactclient.FieldName:    "Required field",
				contactclient.FieldEmail:   "Required field",
				contactclient.FieldMessage: "Required field",
			},
		},
	}

	for _, testCase := range testCases {
		testingT.Run(testCase.name, func(subTest *testing.T) {
			form := validForm()
			testCase.mutate(&form)
			require.Equal(subTest, testCase.expected, form.Validate())
		})
	}
}

func TestValidationErrorListsFieldsInOrder(testingT *testing.T) {
	validationError := &contactclient.ValidationError{Fields: contactclient.FieldErrors{
		contactclient.FieldName:  "Required field",
		contactclient.FieldEmail: "Invalid email format",
	}}
	require.Equal(testingT, []string{"email", "name"}, validationError.Fields.Fields())
	require.Equal(testingT, "invalid contact form: email: Invalid email format; name: Required field", validationError.Error())
}
