package checkout

type Severity string

const (
	SeverityInfo        Severity = "info"
	SeverityDestructive Severity = "destructive"
)

// Notification is a toast shown once on the next render.
type Notification struct {
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
}

func (n Notification) Destructive() bool {
	return n.Severity == SeverityDestructive
}
