package sessiond

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ZiyanaliSaiyed/GraphiVault/session"
	"github.com/ZiyanaliSaiyed/GraphiVault/vaultlayout"
)

// socketPerm matches the teacher's own daemon socket: group/other get no
// access, and the peer UID check below is the real boundary.
const socketPerm = 0o600

// Server holds one session.Manager per vault root and answers requests
// over a UNIX domain socket.
type Server struct {
	socketPath string
	allowedUID int

	sessions *safeMap[string, *session.Manager]
}

// NewServer returns a Server that will listen at socketPath, accepting
// only connections whose peer credentials match allowedUID.
func NewServer(socketPath string, allowedUID int) *Server {
	return &Server{
		socketPath: socketPath,
		allowedUID: allowedUID,
		sessions:   newSafeMap[string, *session.Manager](),
	}
}

// managerFor returns the manager for vaultPath, reading its policy from
// the on-disk config the first time the path is seen.
func (s *Server) managerFor(vaultPath string) (*session.Manager, error) {
	if m, ok := s.sessions.load(vaultPath); ok {
		return m, nil
	}

	cfg, err := vaultlayout.GetConfig(vaultPath)
	if err != nil {
		return nil, err
	}

	return s.sessions.loadOrCreate(vaultPath, func() *session.Manager {
		return session.NewManager(cfg.Policy)
	}), nil
}

// Run listens on the UNIX socket until ctx is cancelled, serving one
// goroutine per connection.
func (s *Server) Run(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}

	if err := os.Chmod(s.socketPath, socketPerm); err != nil {
		ln.Close()
		return err
	}

	guarded := &uidCheckingListener{Listener: ln, allowedUID: s.allowedUID}

	done := make(chan struct{})

	go func() {
		defer close(done)

		for {
			conn, err := guarded.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}

				log.Printf("sessiond: accept: %v", err)

				continue
			}

			go s.handleConn(conn)
		}
	}()

	<-ctx.Done()

	closeErr := ln.Close()
	<-done

	s.sessions.Range(func(_ string, m *session.Manager) { m.Lock() })

	_ = os.Remove(s.socketPath)

	if closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
		return closeErr
	}

	return nil
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(30 * time.Second))

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			writeResponse(conn, Response{Success: false, Error: "malformed request"})
			continue
		}

		writeResponse(conn, s.handleRequest(req))

		conn.SetDeadline(time.Now().Add(30 * time.Second))
	}
}

func writeResponse(conn net.Conn, resp Response) {
	enc := json.NewEncoder(conn)
	if err := enc.Encode(resp); err != nil {
		log.Printf("sessiond: write response: %v", err)
	}
}

func (s *Server) handleRequest(req Request) Response {
	if req.VaultPath == "" {
		return Response{Success: false, Error: "vault_path is required"}
	}

	switch req.Command {
	case "unlock":
		return s.handleUnlock(req)
	case "lock":
		return s.handleLock(req)
	case "touch":
		return s.handleTouch(req)
	case "status":
		return s.handleStatus(req)
	case "get_keys":
		return s.handleGetKeys(req)
	default:
		return Response{Success: false, Error: "unknown command: " + req.Command}
	}
}

func (s *Server) handleUnlock(req Request) Response {
	manager, err := s.managerFor(req.VaultPath)
	if err != nil {
		return Response{Success: false, Error: err.Error()}
	}

	kf, err := vaultlayout.GetKeyFile(req.VaultPath)
	if err != nil {
		return Response{Success: false, Error: err.Error()}
	}

	if err := manager.Unlock(kf, []byte(req.Password)); err != nil {
		return Response{Success: false, Status: manager.Status().String(), Error: err.Error()}
	}

	return Response{Success: true, Status: manager.Status().String()}
}

func (s *Server) handleLock(req Request) Response {
	manager, err := s.managerFor(req.VaultPath)
	if err != nil {
		return Response{Success: false, Error: err.Error()}
	}

	manager.Lock()

	return Response{Success: true, Status: manager.Status().String()}
}

func (s *Server) handleTouch(req Request) Response {
	manager, err := s.managerFor(req.VaultPath)
	if err != nil {
		return Response{Success: false, Error: err.Error()}
	}

	if err := manager.Touch(); err != nil {
		return Response{Success: false, Status: manager.Status().String(), Error: err.Error()}
	}

	return Response{Success: true, Status: manager.Status().String()}
}

func (s *Server) handleStatus(req Request) Response {
	manager, err := s.managerFor(req.VaultPath)
	if err != nil {
		return Response{Success: false, Error: err.Error()}
	}

	return Response{Success: true, Status: manager.Status().String()}
}

// handleGetKeys hands the caller copies of the active session's raw key
// material so it can build its own [vaultcrypto.Controller] locally; the
// daemon itself never performs vault operations.
func (s *Server) handleGetKeys(req Request) Response {
	manager, err := s.managerFor(req.VaultPath)
	if err != nil {
		return Response{Success: false, Error: err.Error()}
	}

	controller, err := manager.Controller()
	if err != nil {
		return Response{Success: false, Status: manager.Status().String(), Error: err.Error()}
	}

	fileKey, tagKey, err := controller.Keys()
	if err != nil {
		return Response{Success: false, Error: err.Error()}
	}

	return Response{
		Success:    true,
		Status:     manager.Status().String(),
		FileKeyHex: hex.EncodeToString(fileKey),
		TagKeyHex:  hex.EncodeToString(tagKey),
	}
}

// uidCheckingListener wraps a net.Listener, closing any accepted
// connection whose peer credentials don't match allowedUID, exactly the
// SO_PEERCRED boundary the teacher's own daemon enforces.
type uidCheckingListener struct {
	net.Listener
	allowedUID int
}

func (l *uidCheckingListener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}

		cred, err := getCred(conn)
		if err != nil || int(cred.Uid) != l.allowedUID {
			conn.Close()
			continue
		}

		return conn, nil
	}
}

func getCred(conn net.Conn) (*unix.Ucred, error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return nil, errors.New("sessiond: not a unix socket connection")
	}

	raw, err := uc.SyscallConn()
	if err != nil {
		return nil, err
	}

	var (
		cred *unix.Ucred
		cErr error
	)

	ctrlErr := raw.Control(func(fd uintptr) {
		cred, cErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if ctrlErr != nil {
		return nil, ctrlErr
	}

	return cred, cErr
}
