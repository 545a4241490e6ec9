package datastore

import "time"

// DiseaseSummary is a disease as listed for a plant.
type DiseaseSummary struct {
	ID       uint     `json:"id"`
	Name     string   `json:"name"`
	Pictures []string `json:"pictures"`
}

// PictureView is a picture as returned with a disease detail.
type PictureView struct {
	ID        uint   `json:"id"`
	URL       string `json:"url"`
	DiseaseID uint   `json:"disease_id"`
}

// DiseaseDetail is the full reference entry of a disease.
type DiseaseDetail struct {
	ID        uint          `json:"id"`
	Name      string        `json:"name"`
	Info      string        `json:"info"`
	Treatment string        `json:"treatment"`
	PlantID   uint          `json:"plant_id"`
	Pictures  []PictureView `json:"pictures"`
}

// NewsItem is a news entry as returned to clients.
type NewsItem struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func projectPlant(p *Plant) string {
	return p.Name
}

func projectDiseaseSummary(d *Disease) DiseaseSummary {
	urls := make([]string, 0, len(d.Pictures))
	for i := range d.Pictures {
		urls = append(urls, d.Pictures[i].URL)
	}
	return DiseaseSummary{ID: d.ID, Name: d.Name, Pictures: urls}
}

func projectDiseaseDetail(d *Disease) *DiseaseDetail {
	pictures := make([]PictureView, 0, len(d.Pictures))
	for _, p := range d.Pictures {
		pictures = append(pictures, PictureView{ID: p.ID, URL: p.URL, DiseaseID: p.DiseaseID})
	}
	return &DiseaseDetail{
		ID:        d.ID,
		Name:      d.Name,
		Info:      d.Info,
		Treatment: d.Treatment,
		PlantID:   d.PlantID,
		Pictures:  pictures,
	}
}

func projectNews(n *News) NewsItem {
	return NewsItem{ID: n.ID, Title: n.Title, Body: n.Body, CreatedAt: n.CreatedAt}
}
