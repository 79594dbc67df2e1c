package domain

type Meal struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Calories string `json:"calories"`
	Date     string `json:"date"`
}

func (m Meal) RecordID() string { return m.ID }

type Profile struct {
	Name   string `json:"name"`
	Weight string `json:"weight"`
	Height string `json:"height"`
	Goal   string `json:"goal"`
}
