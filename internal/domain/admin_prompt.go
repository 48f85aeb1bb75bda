package domain

import (
	"fmt"
	"time"
)

// AdminPrompt holds staff supplied instructions appended to the report prompt.
type AdminPrompt struct {
	ID                 int64
	IsActive           bool
	CustomInstructions string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (p AdminPrompt) String() string {
	state := "Inactive"
	if p.IsActive {
		state = "Active"
	}
	return fmt.Sprintf("Admin Prompt (%s) - %s", state, p.UpdatedAt.Format("2006-01-02 15:04"))
}

// AdminPromptFilter narrows prompt listings. A nil Active returns both states.
type AdminPromptFilter struct {
	Active *bool
	Query  string
}
