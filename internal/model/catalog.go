package model

import "time"

const (
	SkillLevelMin = 0
	SkillLevelMax = 100
)

// Project is a portfolio entry shown on the portfolio page.
type Project struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	Title         string    `gorm:"not null;size:200;uniqueIndex" json:"title"`
	Description   string    `gorm:"not null;type:text" json:"description"`
	Technologies  []string  `gorm:"serializer:json" json:"technologies"`
	GithubURL     string    `gorm:"size:500" json:"githubUrl,omitempty"`
	LiveURL       string    `gorm:"size:500" json:"liveUrl,omitempty"`
	FeaturedImage string    `gorm:"size:500" json:"featuredImage,omitempty"`
	Category      string    `gorm:"size:100" json:"category,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

// Skill is a single entry of the skills section.
type Skill struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	Name     string `gorm:"not null;size:100;uniqueIndex" json:"name"`
	Level    int    `gorm:"not null;default:0" json:"level"`
	Category string `gorm:"size:100" json:"category,omitempty"`
	Icon     string `gorm:"size:200" json:"icon,omitempty"`
}
