package deploy

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"botforge/internal/logging"
	"botforge/internal/metrics"
)

// ServiceRole identifies which half of a deployed project a process serves.
type ServiceRole string

const (
	ServiceBackend  ServiceRole = "backend"
	ServiceFrontend ServiceRole = "frontend"
)

// ServiceState is the lifecycle state of a supervised process.
type ServiceState string

const (
	StateStarting ServiceState = "starting"
	StateHealthy  ServiceState = "healthy"
	StateStopping ServiceState = "stopping"
	StateStopped  ServiceState = "stopped"
)

// ServiceProcess is one supervised child process. The Supervisor is its sole
// owner; at most one per role may be starting or healthy at a time.
type ServiceProcess struct {
	Role        ServiceRole
	Port        int
	Pid         int
	State       ServiceState
	StartedAt   time.Time
	cmd         *exec.Cmd
	stderr      *bytes.Buffer
	stoppedChan chan struct{}
}

// DeployRequest points the supervisor at a persisted project layout.
type DeployRequest struct {
	ProjectDir  string
	HasFrontend bool
}

// Deployment is the successful outcome: the two fixed, well-known endpoints.
type Deployment struct {
	ProjectDir  string
	BackendURL  string
	FrontendURL string
}

// Commands builds the launch commands for each role. Overridable for tests.
type Commands struct {
	Backend  func(dir string, port int) *exec.Cmd
	Frontend func(dir string, port int) *exec.Cmd
}

func defaultCommands() Commands {
	return Commands{
		Backend: func(dir string, port int) *exec.Cmd {
			cmd := exec.Command("uvicorn", "app:app", "--host", "0.0.0.0", "--port", fmt.Sprintf("%d", port))
			cmd.Dir = dir
			return cmd
		},
		Frontend: func(dir string, port int) *exec.Cmd {
			cmd := exec.Command("python3", "-m", "http.server", fmt.Sprintf("%d", port))
			cmd.Dir = dir
			return cmd
		},
	}
}

const (
	// settlePeriod is how long a freshly launched service gets before the
	// early-exit check.
	settlePeriod = 2 * time.Second
	// stopGrace is how long a SIGTERM'd process gets before SIGKILL.
	stopGrace = 5 * time.Second
)

// Supervisor owns zero or more long-running service processes. Deploy and
// StopAll are serialized: ports are a machine-global resource, so no two
// deployments may run concurrently.
type Supervisor struct {
	mu sync.Mutex

	backendPort  int
	frontendPort int
	reclaimer    *Reclaimer
	commands     Commands
	procs        map[ServiceRole]*ServiceProcess
	log          *zap.Logger
}

// NewSupervisor creates a supervisor bound to the two fixed service ports.
func NewSupervisor(backendPort, frontendPort int, reclaimer *Reclaimer) *Supervisor {
	return &Supervisor{
		backendPort:  backendPort,
		frontendPort: frontendPort,
		reclaimer:    reclaimer,
		commands:     defaultCommands(),
		procs:        make(map[ServiceRole]*ServiceProcess),
		log:          logging.L().With(zap.String("component", "supervisor")),
	}
}

// SetCommands replaces the launch command builders. Used by tests.
func (s *Supervisor) SetCommands(c Commands) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = c
}

// Deploy stops anything currently supervised, reclaims the target ports, and
// launches the backend (and frontend, when the layout has one) from the
// persisted project directory. Any step failure tears down whatever this
// call already started before returning.
func (s *Supervisor) Deploy(ctx context.Context, req DeployRequest) (*Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()

	backendDir := filepath.Join(req.ProjectDir, "backend")
	if _, err := os.Stat(backendDir); err != nil {
		return nil, fmt.Errorf("backend directory not found: %s", backendDir)
	}
	s.repairLayout(req, backendDir)

	// Stop whatever a previous deploy left running, then force-free the
	// ports in case a prior ungraceful shutdown left an orphan.
	s.stopAllLocked()
	ports := []int{s.backendPort}
	if req.HasFrontend {
		ports = append(ports, s.frontendPort)
	}
	if err := s.reclaimer.Reclaim(ports); err != nil {
		metrics.Get().DeploysTotal.WithLabelValues("port_conflict").Inc()
		return nil, err
	}

	if err := s.launchLocked(ctx, ServiceBackend, backendDir, s.backendPort); err != nil {
		s.stopAllLocked()
		metrics.Get().DeploysTotal.WithLabelValues("backend_start_failure").Inc()
		return nil, err
	}

	if req.HasFrontend {
		frontendDir := filepath.Join(req.ProjectDir, "frontend")
		if err := s.launchLocked(ctx, ServiceFrontend, frontendDir, s.frontendPort); err != nil {
			s.stopAllLocked()
			metrics.Get().DeploysTotal.WithLabelValues("frontend_start_failure").Inc()
			return nil, err
		}
	}

	metrics.Get().DeploysTotal.WithLabelValues("success").Inc()
	metrics.Get().DeployDuration.Observe(time.Since(start).Seconds())

	dep := &Deployment{
		ProjectDir: req.ProjectDir,
		BackendURL: fmt.Sprintf("http://localhost:%d", s.backendPort),
	}
	if req.HasFrontend {
		dep.FrontendURL = fmt.Sprintf("http://localhost:%d", s.frontendPort)
	}
	s.log.Info("deployment complete",
		zap.String("project_dir", req.ProjectDir),
		zap.String("backend_url", dep.BackendURL),
		zap.String("frontend_url", dep.FrontendURL))
	return dep, nil
}

// repairLayout recreates manifest files a partial assembly may have lost.
func (s *Supervisor) repairLayout(req DeployRequest, backendDir string) {
	reqFile := filepath.Join(backendDir, "requirements.txt")
	if _, err := os.Stat(reqFile); os.IsNotExist(err) {
		content := "fastapi>=0.100.0\nuvicorn>=0.23.0\nsqlalchemy>=2.0.0\npydantic>=2.0.0\npython-dotenv>=1.0.0\n"
		if werr := os.WriteFile(reqFile, []byte(content), 0o644); werr == nil {
			s.log.Warn("created missing requirements.txt", zap.String("path", reqFile))
		}
	}

	if !req.HasFrontend {
		return
	}
	indexFile := filepath.Join(req.ProjectDir, "frontend", "index.html")
	if _, err := os.Stat(indexFile); os.IsNotExist(err) {
		// The static server needs an entry page; point it at the component.
		content := "<!DOCTYPE html>\n<html>\n<head><title>Generated Application</title></head>\n<body>\n<div id=\"root\"></div>\n<script type=\"text/babel\" src=\"App.jsx\"></script>\n</body>\n</html>\n"
		if werr := os.WriteFile(indexFile, []byte(content), 0o644); werr == nil {
			s.log.Warn("created missing index.html", zap.String("path", indexFile))
		}
	}
}

// launchLocked starts one service, waits the settle period, and treats an
// early exit as a start failure with the captured stderr as the reason.
func (s *Supervisor) launchLocked(ctx context.Context, role ServiceRole, dir string, port int) error {
	build := s.commands.Backend
	if role == ServiceFrontend {
		build = s.commands.Frontend
	}
	cmd := build(dir, port)

	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	// Own process group so the whole service tree dies together.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	s.log.Info("starting service",
		zap.String("role", string(role)),
		zap.Int("port", port),
		zap.String("dir", dir))

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s service: %w", role, err)
	}

	proc := &ServiceProcess{
		Role:        role,
		Port:        port,
		Pid:         cmd.Process.Pid,
		State:       StateStarting,
		StartedAt:   time.Now(),
		cmd:         cmd,
		stderr:      stderr,
		stoppedChan: make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		close(proc.stoppedChan)
	}()

	select {
	case <-proc.stoppedChan:
		return fmt.Errorf("%s service exited during startup: %s", role, stderr.String())
	case <-ctx.Done():
		s.killLocked(proc)
		return ctx.Err()
	case <-time.After(settlePeriod):
	}

	// Settled and still alive.
	select {
	case <-proc.stoppedChan:
		return fmt.Errorf("%s service exited during startup: %s", role, stderr.String())
	default:
	}

	proc.State = StateHealthy
	s.procs[role] = proc
	metrics.Get().ServicesUp.WithLabelValues(string(role)).Set(1)
	return nil
}

// StopAll stops every supervised process. Idempotent and safe to call when
// nothing is running; callable independently of any in-flight run.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopAllLocked()
}

func (s *Supervisor) stopAllLocked() {
	for role, proc := range s.procs {
		s.log.Info("stopping service", zap.String("role", string(role)), zap.Int("pid", proc.Pid))
		proc.State = StateStopping
		s.killLocked(proc)
		proc.State = StateStopped
		metrics.Get().ServicesUp.WithLabelValues(string(role)).Set(0)
		delete(s.procs, role)
	}
}

// killLocked sends graceful-terminate to the process group, waits the grace
// period, then escalates to SIGKILL.
func (s *Supervisor) killLocked(proc *ServiceProcess) {
	if proc.cmd == nil || proc.cmd.Process == nil {
		return
	}

	_ = syscall.Kill(-proc.cmd.Process.Pid, syscall.SIGTERM)

	select {
	case <-proc.stoppedChan:
	case <-time.After(stopGrace):
		_ = syscall.Kill(-proc.cmd.Process.Pid, syscall.SIGKILL)
		<-proc.stoppedChan
	}
}

// Status reports the tracked state of one role, or StateStopped when nothing
// is supervised for it.
func (s *Supervisor) Status(role ServiceRole) ServiceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if proc, ok := s.procs[role]; ok {
		return proc.State
	}
	return StateStopped
}
