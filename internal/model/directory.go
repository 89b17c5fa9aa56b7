package model

import "github.com/google/uuid"

// Directory entities are owned by the external directory service; the core
// only ever reads them.

type Professor struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
}

func (p *Professor) FullName() string {
	return p.FirstName + " " + p.LastName
}

type Group struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	SubgroupIDs []uuid.UUID `json:"subgroup_ids"`
}

type Student struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}
