package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"ripcord/internal/daemon"
	"ripcord/internal/drives"
	"ripcord/internal/inspection"
	"ripcord/internal/logging"
	"ripcord/internal/queue"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName("Ripcord", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func driveToWire(drive drives.Drive) DriveInfo {
	return DriveInfo{
		ID:        drive.ID,
		Device:    drive.Device,
		Model:     drive.Model,
		DiscLabel: drive.DiscLabel,
		State:     string(drive.State),
	}
}

func titleToWire(title inspection.Title) TitleInfo {
	return TitleInfo{
		Index:       title.Index,
		Name:        title.Name,
		Duration:    title.Duration,
		Size:        title.Size,
		Chapters:    title.Chapters,
		MainFeature: title.MainFeature,
	}
}

func jobToWire(job *queue.Job) JobInfo {
	if job == nil {
		return JobInfo{}
	}
	info := JobInfo{
		ID:              job.ID,
		DriveID:         job.DriveID,
		DiscLabel:       job.DiscLabel,
		TitleIndexes:    job.TitleIndexes,
		Status:          string(job.Status),
		ProgressStage:   job.ProgressStage,
		ProgressPercent: job.ProgressPercent,
		ProgressTitle:   job.ProgressTitle,
		ErrorMessage:    job.ErrorMessage,
		OutputFiles:     job.OutputFiles,
		CreatedAt:       job.CreatedAt.Format(time.RFC3339),
	}
	if job.FinishedAt != nil {
		info.FinishedAt = job.FinishedAt.Format(time.RFC3339)
	}
	return info
}

func parseStatuses(raw []string) ([]queue.Status, error) {
	statuses := make([]queue.Status, 0, len(raw))
	for _, value := range raw {
		parsed, err := queue.ParseStatus(value)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, parsed)
	}
	return statuses, nil
}

func (s *service) Drives(_ DrivesRequest, resp *DrivesResponse) error {
	list, err := s.daemon.Facade().ListDrives(s.ctx)
	if err != nil {
		return err
	}
	resp.Drives = make([]DriveInfo, 0, len(list))
	for _, drive := range list {
		resp.Drives = append(resp.Drives, driveToWire(drive))
	}
	return nil
}

func (s *service) Titles(req TitlesRequest, resp *TitlesResponse) error {
	snap, err := s.daemon.Facade().ListTitles(s.ctx, req.DriveID)
	if err != nil {
		return err
	}
	resp.DriveID = snap.DriveID
	resp.DiscLabel = snap.DiscLabel
	resp.Titles = make([]TitleInfo, 0, len(snap.Titles))
	for _, title := range snap.Titles {
		resp.Titles = append(resp.Titles, titleToWire(title))
	}
	return nil
}

func (s *service) Rip(req RipRequest, resp *RipResponse) error {
	job, err := s.daemon.Facade().RequestRip(s.ctx, req.DriveID, req.TitleIndexes, req.OutputDir)
	if err != nil {
		return err
	}
	resp.Job = jobToWire(job)
	s.logger.Info("rip requested via IPC",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldEventType, "ipc_rip_requested"))
	return nil
}

func (s *service) JobStatus(req JobStatusRequest, resp *JobStatusResponse) error {
	job, err := s.daemon.Facade().JobStatus(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Job = jobToWire(job)
	return nil
}

func (s *service) Jobs(req JobsListRequest, resp *JobsListResponse) error {
	statuses, err := parseStatuses(req.Statuses)
	if err != nil {
		return err
	}
	jobs, err := s.daemon.Facade().ListJobs(s.ctx, statuses...)
	if err != nil {
		return err
	}
	resp.Jobs = make([]JobInfo, 0, len(jobs))
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, jobToWire(job))
	}
	return nil
}

func (s *service) Cancel(req CancelRequest, resp *CancelResponse) error {
	if err := s.daemon.Facade().CancelJob(s.ctx, req.ID); err != nil {
		return err
	}
	resp.Cancelled = true
	s.logger.Info("job cancelled via IPC",
		logging.Int64(logging.FieldJobID, req.ID),
		logging.String(logging.FieldEventType, "ipc_job_cancelled"))
	return nil
}

func (s *service) Retry(req RetryRequest, resp *RetryResponse) error {
	if err := s.daemon.Facade().RetryJob(s.ctx, req.ID); err != nil {
		return err
	}
	resp.Requeued = true
	s.logger.Info("job requeued via IPC",
		logging.Int64(logging.FieldJobID, req.ID),
		logging.String(logging.FieldEventType, "ipc_job_retried"))
	return nil
}

func (s *service) JobsClear(req JobsClearRequest, resp *JobsClearResponse) error {
	statuses, err := parseStatuses(req.Statuses)
	if err != nil {
		return err
	}
	removed, err := s.daemon.Facade().ClearJobs(s.ctx, statuses...)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.logger.Info("jobs cleared via IPC",
		logging.Int64("removed_count", removed),
		logging.String(logging.FieldEventType, "ipc_jobs_cleared"))
	return nil
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.daemon.Stop()
	resp.Stopped = true
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.JobDBPath = status.JobDBPath
	resp.LockPath = status.LockPath
	resp.SocketPath = status.SocketPath
	resp.JobStats = map[string]int{
		string(queue.StatusPending):   status.Stats.Pending,
		string(queue.StatusReserving): status.Stats.Reserving,
		string(queue.StatusRunning):   status.Stats.Running,
		string(queue.StatusCompleted): status.Stats.Completed,
		string(queue.StatusFailed):    status.Stats.Failed,
	}
	resp.Drives = make([]DriveInfo, 0, len(status.Drives))
	for _, drive := range status.Drives {
		resp.Drives = append(resp.Drives, driveToWire(drive))
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
