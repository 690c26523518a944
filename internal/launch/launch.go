// Package launch resolves and executes the application server command.
//
// The decision logic is a pure function over two environment signals
// (deployment mode, TLS enablement); the effectful execve step lives in
// Executor so the decision table can be tested without spawning processes.
package launch

import (
	"fmt"
	"strings"

	"github.com/s-celles/bemserver-core/internal/config"
)

// ModeProduction is the deployment-mode value selecting the production
// server. Any other value, including the empty string, selects the
// development server.
const ModeProduction = "production"

// Branch identifies one of the three terminal launch paths.
type Branch string

const (
	BranchProdTLS   Branch = "production-tls"
	BranchProdPlain Branch = "production"
	BranchDev       Branch = "development"
)

// Signals are the environment inputs to the launch decision. They are read
// once at process start and never mutated.
type Signals struct {
	Mode string
	TLS  bool
}

// ParseSignals interprets the raw environment values. An empty TLS value and
// an unset variable are equivalent: both mean TLS is disabled. There is no
// separate "explicitly disabled" state.
func ParseSignals(mode, tls string) Signals {
	return Signals{Mode: mode, TLS: tls != ""}
}

// Command is a fully resolved server invocation. Exactly one Command is
// constructed and executed per process lifetime.
type Command struct {
	Branch Branch   `json:"branch"`
	Path   string   `json:"path"`
	Args   []string `json:"args"`
}

// String renders the invocation the way a shell would show it.
func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

// Resolve maps the signals to exactly one launch command. Precedence:
// production+TLS, then production, then development. The TLS signal is
// ignored outside production. Resolve never validates certificate files —
// missing TLS material surfaces as a gunicorn startup failure, with no
// fallback to the non-TLS branch.
func Resolve(sig Signals, srv config.ServerConfig) Command {
	switch {
	case sig.Mode == ModeProduction && sig.TLS:
		return Command{
			Branch: BranchProdTLS,
			Path:   srv.GunicornBin,
			Args: []string{
				srv.GunicornBin,
				"--bind", srv.Bind,
				fmt.Sprintf("--certfile=%s", srv.CertFile),
				fmt.Sprintf("--keyfile=%s", srv.KeyFile),
				srv.Entrypoint,
			},
		}
	case sig.Mode == ModeProduction:
		return Command{
			Branch: BranchProdPlain,
			Path:   srv.GunicornBin,
			Args: []string{
				srv.GunicornBin,
				"--bind", srv.Bind,
				srv.Entrypoint,
			},
		}
	default:
		return Command{
			Branch: BranchDev,
			Path:   srv.FlaskBin,
			Args:   []string{srv.FlaskBin, "run"},
		}
	}
}
