package sshtest

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/sftp"
	gossh "golang.org/x/crypto/ssh"
)

// ServerOptions configures the accepted credentials of a Server.
type ServerOptions struct {
	Username       string
	Password       string
	AuthorizedKeys []gossh.PublicKey
}

// Server is an SSH server on the loopback interface that serves the local
// filesystem over the SFTP subsystem.
type Server struct {
	Host    string
	Port    int
	HostKey gossh.PublicKey

	listener       net.Listener
	config         *gossh.ServerConfig
	agentForwarded atomic.Bool

	mu    sync.Mutex
	conns []net.Conn
}

// NewServer starts a Server. It is shut down when the test ends.
func NewServer(t testing.TB, opts ServerOptions) *Server {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate host key: %v", err)
	}
	signer, err := gossh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("Failed to create host key signer: %v", err)
	}

	config := &gossh.ServerConfig{
		PasswordCallback: func(c gossh.ConnMetadata, password []byte) (*gossh.Permissions, error) {
			if opts.Password != "" && c.User() == opts.Username && string(password) == opts.Password {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", c.User())
		},
		PublicKeyCallback: func(c gossh.ConnMetadata, key gossh.PublicKey) (*gossh.Permissions, error) {
			if c.User() == opts.Username {
				for _, k := range opts.AuthorizedKeys {
					if bytes.Equal(k.Marshal(), key.Marshal()) {
						return nil, nil
					}
				}
			}
			return nil, fmt.Errorf("unknown public key for %q", c.User())
		},
	}
	config.AddHostKey(signer)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	addr := listener.Addr().(*net.TCPAddr)
	s := &Server{
		Host:     addr.IP.String(),
		Port:     addr.Port,
		HostKey:  signer.PublicKey(),
		listener: listener,
		config:   config,
	}

	go s.serve()
	t.Cleanup(s.Close)

	return s
}

// Fingerprint returns the MD5 fingerprint of the host key.
func (s *Server) Fingerprint() string {
	return gossh.FingerprintLegacyMD5(s.HostKey)
}

// AgentForwarded reports whether any client requested agent forwarding.
func (s *Server) AgentForwarded() bool {
	return s.agentForwarded.Load()
}

// DropConnections closes every accepted connection while keeping the listener open.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

// Close stops the listener and drops every connection.
func (s *Server) Close() {
	s.listener.Close()
	s.DropConnections()
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	sshConn, chans, reqs, err := gossh.NewServerConn(conn, s.config)
	if err != nil {
		conn.Close()
		return
	}
	defer sshConn.Close()

	go gossh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(gossh.UnknownChannelType, "unknown channel type")
			continue
		}

		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		go s.handleSession(channel, requests)
	}
}

func (s *Server) handleSession(channel gossh.Channel, requests <-chan *gossh.Request) {
	for req := range requests {
		switch req.Type {
		case "subsystem":
			if subsystemName(req.Payload) != "sftp" {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)
			go func() {
				defer channel.Close()
				server, err := sftp.NewServer(channel)
				if err != nil {
					return
				}
				_ = server.Serve()
			}()
		case "auth-agent-req@openssh.com":
			s.agentForwarded.Store(true)
			req.Reply(true, nil)
		default:
			req.Reply(false, nil)
		}
	}
}

func subsystemName(payload []byte) string {
	if len(payload) < 4 {
		return ""
	}
	n := binary.BigEndian.Uint32(payload)
	if int(n) > len(payload)-4 {
		return ""
	}
	return string(payload[4 : 4+n])
}
