package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	gossh "golang.org/x/crypto/ssh"
)

// testServer is a minimal in-process SSH server. It accepts one user and one
// public key and answers exec requests from a fixed script:
//
//	"fail" exits 3 with "boom" on stderr
//	"drop" closes the channel without an exit status
//	"hang" never answers until the server is closed
//	anything else echoes the command back and exits 0
type testServer struct {
	listener   net.Listener
	hostSigner gossh.Signer
	user       string
	keyPath    string
	done       chan struct{}

	mu       sync.Mutex
	commands []string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	_, hostKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	hostSigner, err := gossh.NewSignerFromKey(hostKey)
	require.NoError(t, err)

	clientPub, clientKeyPath := writeClientKey(t, "id_ed25519")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &testServer{
		listener:   ln,
		hostSigner: hostSigner,
		user:       "alice",
		keyPath:    clientKeyPath,
		done:       make(chan struct{}),
	}

	cfg := &gossh.ServerConfig{
		PublicKeyCallback: func(meta gossh.ConnMetadata, key gossh.PublicKey) (*gossh.Permissions, error) {
			if meta.User() == s.user && string(key.Marshal()) == string(clientPub.Marshal()) {
				return &gossh.Permissions{}, nil
			}
			return nil, errors.New("unknown key")
		},
	}
	cfg.AddHostKey(hostSigner)

	go s.serve(cfg)
	t.Cleanup(s.Close)

	return s
}

// writeClientKey generates an ed25519 key pair and stores the private half
// as an OpenSSH PEM file in a temp dir.
func writeClientKey(t *testing.T, name string) (gossh.PublicKey, string) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	block, err := gossh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))

	sshPub, err := gossh.NewPublicKey(pub)
	require.NoError(t, err)
	return sshPub, path
}

func (s *testServer) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *testServer) Addr() string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(s.Port()))
}

func (s *testServer) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *testServer) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
		_ = s.listener.Close()
	}
}

func (s *testServer) serve(cfg *gossh.ServerConfig) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn, cfg)
	}
}

func (s *testServer) handleConn(conn net.Conn, cfg *gossh.ServerConfig) {
	sconn, chans, reqs, err := gossh.NewServerConn(conn, cfg)
	if err != nil {
		_ = conn.Close()
		return
	}
	defer sconn.Close()
	go gossh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(gossh.UnknownChannelType, "session only")
			continue
		}
		ch, requests, err := newCh.Accept()
		if err != nil {
			continue
		}
		go s.handleSession(ch, requests)
	}
}

func (s *testServer) handleSession(ch gossh.Channel, requests <-chan *gossh.Request) {
	defer ch.Close()

	for req := range requests {
		if req.Type != "exec" {
			_ = req.Reply(false, nil)
			continue
		}

		var payload struct{ Command string }
		if err := gossh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			return
		}
		_ = req.Reply(true, nil)

		s.mu.Lock()
		s.commands = append(s.commands, payload.Command)
		s.mu.Unlock()

		switch payload.Command {
		case "fail":
			_, _ = ch.Stderr().Write([]byte("boom"))
			sendExitStatus(ch, 3)
		case "drop":
		case "hang":
			<-s.done
		default:
			_, _ = ch.Write([]byte(payload.Command + "\n"))
			sendExitStatus(ch, 0)
		}
		return
	}
}

func sendExitStatus(ch gossh.Channel, code uint32) {
	_, _ = ch.SendRequest("exit-status", false, gossh.Marshal(struct{ Status uint32 }{code}))
}
