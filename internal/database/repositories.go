package database

import (
	"github.com/fluentlabs/lernplan/internal/progress"
)

// Ensure concrete repositories satisfy the tracker's store interfaces
var (
	_ progress.UserStore   = (*UserRepository)(nil)
	_ progress.RecordStore = (*ProgressRepository)(nil)
)
