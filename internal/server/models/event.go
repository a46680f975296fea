package models

import "time"

type Event struct {
	ID        string
	Name      string
	Slug      string
	CreatedAt time.Time
}
