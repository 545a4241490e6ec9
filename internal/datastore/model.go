package datastore

import "time"

// Plant is a crop with its catalogued diseases.
type Plant struct {
	ID       uint      `gorm:"primaryKey"`
	Name     string    `gorm:"size:100;uniqueIndex;not null"`
	Diseases []Disease `gorm:"foreignKey:PlantID;constraint:OnDelete:CASCADE"`
}

// TableName keeps the singular table name.
func (Plant) TableName() string { return "plant" }

// Disease is the reference entry for one disease of one plant. The same
// disease name may exist for several plants.
type Disease struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"size:200;not null;uniqueIndex:idx_disease_plant_name,priority:2"`
	Info      string    `gorm:"type:text"`
	Treatment string    `gorm:"type:text"`
	PlantID   uint      `gorm:"not null;uniqueIndex:idx_disease_plant_name,priority:1"`
	Pictures  []Picture `gorm:"foreignKey:DiseaseID;constraint:OnDelete:CASCADE"`
}

// TableName keeps the singular table name.
func (Disease) TableName() string { return "disease" }

// Picture is an example photograph of a disease.
type Picture struct {
	ID        uint   `gorm:"primaryKey"`
	URL       string `gorm:"size:1024;not null"`
	DiseaseID uint   `gorm:"index;not null"`
}

// TableName keeps the singular table name.
func (Picture) TableName() string { return "picture" }

// News is an append-only announcement.
type News struct {
	ID        uint      `gorm:"primaryKey"`
	Title     string    `gorm:"size:300;not null"`
	Body      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"index;autoCreateTime"`
}

// TableName keeps the singular table name.
func (News) TableName() string { return "news" }

// PictureFetch selects whether disease reads load their pictures.
type PictureFetch int

const (
	// SkipPictures leaves Pictures empty.
	SkipPictures PictureFetch = iota
	// WithPictures eager-loads Pictures in one extra query.
	WithPictures
)
