package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"gxpcore.org/internal/audit"
	"gxpcore.org/internal/obs"
	"gxpcore.org/internal/rbac"
	"gxpcore.org/internal/stream"
	"gxpcore.org/internal/workflow"
)

const serviceName = "gxpcore-api"

// ReadyProbe checks service readiness (database ping when configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the compliance core. All collaborators arrive
// through New; handlers hold no global state.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	rbac   *rbac.Service
	orch   *workflow.Orchestrator
	writer *audit.Writer
	trail  audit.Reader
	events *stream.Stream
}

// New wires the routes.
func New(rp ReadyProbe, version string, rbacSvc *rbac.Service, orch *workflow.Orchestrator, writer *audit.Writer, trail audit.Reader, events *stream.Stream) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		rbac:       rbacSvc,
		orch:       orch,
		writer:     writer,
		trail:      trail,
		events:     events,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/token", a.handleToken)

	a.mux.HandleFunc("/v1/users", a.handleUsers)
	a.mux.HandleFunc("/v1/users/", a.handleUserScoped)
	a.mux.HandleFunc("/v1/roles", a.handleRoles)
	a.mux.HandleFunc("/v1/roles/", a.handleRoleScoped)
	a.mux.HandleFunc("/v1/permissions", a.handlePermissions)

	a.mux.HandleFunc("/v1/workflow/", a.handleWorkflowScoped)

	a.mux.HandleFunc("/v1/audit", a.handleAuditQuery)
	a.mux.HandleFunc("/v1/audit/stream", a.handleAuditStream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = RequestID(h)
	h = RateLimit(h, 50, 25)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = Logging(h)
	return obs.Instrument(h)
}
