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

	"ratchet/internal/daemon"
	"ratchet/internal/lifecycle"
	"ratchet/internal/logging"
	"ratchet/internal/store"
)

// Server accepts RPC connections and forwards them to the daemon.
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
	if err := rpcServer.RegisterName("Ratchet", srv); err != nil {
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
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
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
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func parseStatuses(raw []string) ([]lifecycle.Status, error) {
	statuses := make([]lifecycle.Status, 0, len(raw))
	for _, value := range raw {
		status, ok := lifecycle.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.InFlight = status.Engine.InFlight
	resp.LastError = status.Engine.LastError
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockFilePath
	resp.ItemStats = make(map[string]int, len(status.Engine.Stats))
	for k, v := range status.Engine.Stats {
		resp.ItemStats[string(k)] = v
	}
	for _, health := range status.Engine.HandlerHealth {
		resp.HandlerHealth = append(resp.HandlerHealth, HandlerHealth{
			Name:   health.Name,
			Ready:  health.Ready,
			Detail: health.Detail,
		})
	}
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Sweep(_ SweepRequest, resp *SweepResponse) error {
	if err := s.daemon.Sweep(s.ctx); err != nil {
		return encodeError(err)
	}
	resp.Triggered = true
	return nil
}

func (s *service) ItemCreate(req ItemCreateRequest, resp *ItemCreateResponse) error {
	item, err := s.daemon.CreateItem(s.ctx, store.NewItem{
		Kind:             lifecycle.Kind(req.Kind),
		Priority:         lifecycle.Priority(req.Priority),
		RequiresApproval: req.RequiresApproval,
		Payload:          req.Payload,
		MaxAttempts:      req.MaxAttempts,
	})
	if err != nil {
		return encodeError(err)
	}
	resp.Item = FromItem(item)
	return nil
}

func (s *service) ItemList(req ItemListRequest, resp *ItemListResponse) error {
	statuses, err := parseStatuses(req.Statuses)
	if err != nil {
		return err
	}
	items, err := s.daemon.ListItems(s.ctx, statuses...)
	if err != nil {
		return encodeError(err)
	}
	resp.Items = FromItems(items)
	return nil
}

func (s *service) ItemDescribe(req ItemDescribeRequest, resp *ItemDescribeResponse) error {
	item, err := s.daemon.DescribeItem(s.ctx, req.ID)
	if err != nil {
		return encodeError(err)
	}
	resp.Item = FromItem(item)
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	entries, err := s.daemon.History(s.ctx, req.ID)
	if err != nil {
		return encodeError(err)
	}
	resp.Entries = FromEntries(entries)
	return nil
}

func (s *service) Ledger(req LedgerRequest, resp *LedgerResponse) error {
	var from, to time.Time
	var err error
	if req.Since != "" {
		if from, err = time.Parse(time.RFC3339, req.Since); err != nil {
			return fmt.Errorf("parse since: %w", err)
		}
	}
	if req.Until != "" {
		if to, err = time.Parse(time.RFC3339, req.Until); err != nil {
			return fmt.Errorf("parse until: %w", err)
		}
	}
	entries, err := s.daemon.LedgerBetween(s.ctx, from, to)
	if err != nil {
		return encodeError(err)
	}
	resp.Entries = FromEntries(entries)
	return nil
}

func (s *service) ApprovalList(_ ApprovalListRequest, resp *ApprovalListResponse) error {
	items, err := s.daemon.PendingApprovals(s.ctx)
	if err != nil {
		return encodeError(err)
	}
	resp.Items = FromItems(items)
	return nil
}

func (s *service) Decide(req DecideRequest, resp *DecideResponse) error {
	item, err := s.daemon.Decide(s.ctx, req.ID, req.Approved, req.Reason)
	if err != nil {
		return encodeError(err)
	}
	resp.Item = FromItem(item)
	return nil
}
