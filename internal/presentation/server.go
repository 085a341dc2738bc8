// Package presentation implements the SSH terminal presentation adapter
// (C10, spec.md §4.10/§6): an external transport that delivers line input
// to a connection actor and renders its replies as terminal output.
//
// Grounded on the teacher's internal/session/server/ssh.go (ServerConfig
// assembly, host-key loading, accept loop) and
// _examples/original_source/server/src/terminal_session.rs (line dispatch
// between command mode and active-session mode).
package presentation

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"

	"github.com/playferrous/playferrous/internal/connection"
	"github.com/playferrous/playferrous/pkg/ids"
)

// Directory authenticates a username/password pair, returning a session
// ticket and the user id it names. Declared locally so this package does
// not import internal/directory directly, matching the narrow-interface
// idiom used throughout (internal/gamesession.Launcher,
// internal/connection.ProposalSessions). Satisfied by
// *directory.Directory.
type Directory interface {
	Authenticate(ctx context.Context, username, password string) (ticket string, err error)
	VerifyTicket(ticket string) (ids.UserID, error)
}

// Config is the ssh-tagged presentation config (spec.md §6).
type Config struct {
	Address string
	Port    int
	KeyPath string
}

// Server is one SSH presentation endpoint.
type Server struct {
	cfg       Config
	sshConfig *ssh.ServerConfig
	registry  *connection.Registry
	directory Directory
	log       *slog.Logger
	listener  net.Listener
}

// NewServer constructs an SSH presentation server. The host key is loaded
// from cfg.KeyPath if present; otherwise an Ed25519 key pair is generated
// and written there PKCS#8-encoded (spec.md §6's explicit deviation from
// the teacher's RSA+PKCS1 host key).
func NewServer(cfg Config, registry *connection.Registry, directory Directory, log *slog.Logger) (*Server, error) {
	hostKey, err := loadOrGenerateHostKey(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("presentation: host key: %w", err)
	}

	sshConfig := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			ticket, err := directory.Authenticate(context.Background(), meta.User(), string(password))
			if err != nil {
				return nil, fmt.Errorf("authentication failed")
			}
			return &ssh.Permissions{Extensions: map[string]string{"ticket": ticket}}, nil
		},
	}
	sshConfig.AddHostKey(hostKey)

	return &Server{
		cfg:       cfg,
		sshConfig: sshConfig,
		registry:  registry,
		directory: directory,
		log:       log,
	}, nil
}

// Start listens and accepts connections until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Address, s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("presentation: listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.log.Info("ssh presentation server starting", "address", addr)

	go s.acceptLoop(ctx)
	return nil
}

// Stop closes the listener.
func (s *Server) Stop() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				s.log.Error("presentation: accept failed", "error", err)
				continue
			}
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, s.sshConfig)
	if err != nil {
		s.log.Debug("presentation: ssh handshake failed", "error", err, "remote_addr", conn.RemoteAddr())
		return
	}
	defer sshConn.Close()

	userID, err := s.directory.VerifyTicket(sshConn.Permissions.Extensions["ticket"])
	if err != nil {
		s.log.Warn("presentation: ticket verification failed", "error", err)
		return
	}

	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		go s.handleSessionChannel(ctx, newChannel, userID)
	}
}

func (s *Server) handleSessionChannel(ctx context.Context, newChannel ssh.NewChannel, userID ids.UserID) {
	channel, requests, err := newChannel.Accept()
	if err != nil {
		s.log.Error("presentation: accept channel failed", "error", err)
		return
	}
	defer channel.Close()

	for req := range requests {
		switch req.Type {
		case "shell", "pty-req", "env":
			if req.WantReply {
				req.Reply(true, nil)
			}
			if req.Type == "shell" {
				runTerminal(ctx, channel, userID, s.registry, s.log.With("user_id", fmt.Sprint(userID)))
				return
			}
		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

func loadOrGenerateHostKey(path string) (ssh.Signer, error) {
	if path == "" {
		return generateHostKey()
	}

	if keyBytes, err := os.ReadFile(path); err == nil {
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parse host key: %w", err)
		}
		return signer, nil
	}

	signer, keyPEM, err := newHostKeyPEM()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create host key directory: %w", err)
	}
	if err := os.WriteFile(path, keyPEM, 0o600); err != nil {
		return nil, fmt.Errorf("write host key file: %w", err)
	}
	return signer, nil
}

func generateHostKey() (ssh.Signer, error) {
	signer, _, err := newHostKeyPEM()
	return signer, err
}

// newHostKeyPEM generates an Ed25519 key pair and encodes it PKCS#8
// (spec.md §6: "if missing, an Ed25519 key pair is generated and written
// in PKCS#8").
func newHostKeyPEM() (ssh.Signer, []byte, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate ed25519 key: %w", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal pkcs8 key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("signer from key: %w", err)
	}
	return signer, keyPEM, nil
}
