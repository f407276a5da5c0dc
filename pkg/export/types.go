package export

import "context"

// Metric namespace layout on the controller. Paths are pipe-delimited;
// segments containing spaces are percent-encoded by the catalog client.
const (
	// PathOverallPerformance is the root folder whose children are tiers.
	PathOverallPerformance = "Overall Application Performance"

	// SegmentExternalCalls holds backend call leaves under a tier or task.
	SegmentExternalCalls = "External Calls"

	// SegmentThreadTasks holds asynchronous task folders under a tier.
	SegmentThreadTasks = "Thread Tasks"

	// KindFolder is the entity kind of traversable metric folders.
	KindFolder = "folder"
)

// Application is a monitored application as reported by the controller.
type Application struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

// MetricEntity is one child node of a metric-tree folder. Kind distinguishes
// traversable folders from leaf metrics.
type MetricEntity struct {
	Name string `json:"name"`
	Kind string `json:"type"`
}

// Backend is one exported row: an external call target discovered under an
// application tier. Identity for deduplication is (tier, Name) within one
// application; Type is derived from the raw call string and not part of the
// identity key.
type Backend struct {
	Application string
	Tier        string
	Type        string
	Name        string
}

// Catalog is the view of the controller the walker traverses. Implemented by
// controller.Client; tests substitute fakes.
type Catalog interface {
	// Applications lists all monitored applications.
	Applications(ctx context.Context) ([]Application, error)

	// Entities lists the children of the given metric path for one
	// application. An empty result is a normal traversal outcome.
	Entities(ctx context.Context, appID int, path string) ([]MetricEntity, error)
}

// Sink receives export rows. Rows are appended per tier as the walk
// progresses, so partial output survives a failed run.
type Sink interface {
	// Begin prepares the output artifact (header, schema).
	Begin(ctx context.Context) error

	// Append writes rows in traversal order.
	Append(ctx context.Context, rows []Backend) error

	// Close releases the artifact handle.
	Close() error
}
