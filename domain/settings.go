package domain

// Settings holds per-user options. One document per user.
type Settings struct {
	Theme                string `json:"theme"`
	AIEnabled            bool   `json:"aiEnabled"`
	CollaborationEnabled bool   `json:"collaborationEnabled"`
	AdvancedStatus       bool   `json:"advancedStatus"`
	RemindersEnabled     bool   `json:"remindersEnabled"`
	OverdueAlerts        bool   `json:"overdueAlerts"`
	DefaultView          string `json:"defaultView"`
}

// DefaultSettings returns the settings applied before a user has saved
// any. Advanced status inference is on by default.
func DefaultSettings() Settings {
	return Settings{
		Theme:            "system",
		AdvancedStatus:   true,
		RemindersEnabled: true,
		OverdueAlerts:    true,
		DefaultView:      "dashboard",
	}
}
