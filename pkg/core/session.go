// pkg/core/session.go
package core

import "time"

// Session is one simulation run.
type Session struct {
	ID        string
	Name      string
	Author    string
	StartTime time.Time
	DeltaTime float32
	Version   string
}
