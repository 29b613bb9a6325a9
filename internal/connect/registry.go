// Package connect turns routing decisions into downstream action: worker
// POSTs, outbound email, or Hub passthrough.
package connect

import "errors"

// ErrRouteUnknown is returned when a decision names a route nobody registered.
var ErrRouteUnknown = errors.New("unknown route")

// Route statuses.
const (
	StatusLive     = "live"
	StatusTesting  = "testing"
	StatusNotBuilt = "not_built"
)

// Delivery targets.
const (
	TargetWorker  = "worker"
	TargetPostman = "postman"
)

// Route is one registered destination.
type Route struct {
	Name     string
	Target   string
	Endpoint string
	Status   string
	Friendly string
	Subtitle string
}

// Registry maps route names to destinations.
type Registry struct {
	routes map[string]Route
}

func NewRegistry(routes ...Route) *Registry {
	r := &Registry{routes: make(map[string]Route, len(routes))}
	for _, route := range routes {
		r.routes[route.Name] = route
	}
	return r
}

func (r *Registry) Get(name string) (Route, bool) {
	route, ok := r.routes[name]
	return route, ok
}

// DefaultRegistry is the production route table.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Route{Name: "file", Target: TargetWorker, Endpoint: "https://dot-file.up.railway.app/file",
			Status: StatusTesting, Friendly: "Filed it", Subtitle: "Tucked away safe and sound."},
		Route{Name: "update", Target: TargetWorker, Endpoint: "https://dot-update.up.railway.app/update",
			Status: StatusNotBuilt, Friendly: "Update logged", Subtitle: "The job record is up to date."},
		Route{Name: "triage", Target: TargetWorker, Endpoint: "https://dot-triage.up.railway.app/triage",
			Status: StatusNotBuilt, Friendly: "Triage on the way", Subtitle: "A rundown of what's on is coming."},
		Route{Name: "new-job", Target: TargetWorker, Endpoint: "https://dot-newjob.up.railway.app/new-job",
			Status: StatusNotBuilt, Friendly: "New job opened", Subtitle: "Number reserved and channel on the way."},
		Route{Name: "wip", Target: TargetWorker, Endpoint: "https://dot-wip.up.railway.app/wip",
			Status: StatusNotBuilt, Friendly: "WIP updated", Subtitle: "The work-in-progress list knows."},
		Route{Name: "todo", Target: TargetWorker, Endpoint: "https://dot-todo.up.railway.app/todo",
			Status: StatusNotBuilt, Friendly: "To-do noted", Subtitle: "Added to the list."},
		Route{Name: "tracker", Target: TargetWorker, Endpoint: "https://dot-tracker.up.railway.app/tracker",
			Status: StatusNotBuilt, Friendly: "Tracker updated", Subtitle: "Numbers are in."},
		Route{Name: "work-to-client", Target: TargetWorker, Endpoint: "https://dot-wtc.up.railway.app/work-to-client",
			Status: StatusNotBuilt, Friendly: "Sent to client", Subtitle: "Off it goes."},
		Route{Name: "feedback", Target: TargetWorker, Endpoint: "https://dot-feedback.up.railway.app/feedback",
			Status: StatusNotBuilt, Friendly: "Feedback captured", Subtitle: "Logged against the job."},
		Route{Name: "clarify", Target: TargetPostman, Status: StatusTesting},
		Route{Name: "confirm", Target: TargetPostman, Status: StatusTesting},
	)
}

// noConfirmRoutes never get a confirmation email: either the route itself is
// a question back to the sender, or the reply channel is not email.
var noConfirmRoutes = map[string]bool{
	"clarify":  true,
	"confirm":  true,
	"wip":      true,
	"todo":     true,
	"tracker":  true,
	"answer":   true,
	"redirect": true,
}

// WantsConfirmation reports whether a successful dispatch on this route
// should be followed by a confirmation email.
func WantsConfirmation(route string) bool {
	return !noConfirmRoutes[route]
}
