package protocol

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/arixa/arixa/internal/session"
)

// DefaultStreamAddr is where the line stream listens unless configured.
const DefaultStreamAddr = "localhost:8765"

// StreamServer serves the envelope over a line-delimited byte stream: one JSON
// request per line in, one JSON response per line out. Each connection gets
// its own session.
type StreamServer struct {
	dispatcher *Dispatcher
	workingDir string

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// NewStreamServer creates a stream server. workingDir seeds each
// connection's session.
func NewStreamServer(d *Dispatcher, workingDir string) *StreamServer {
	return &StreamServer{
		dispatcher: d,
		workingDir: workingDir,
		conns:      make(map[net.Conn]struct{}),
	}
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *StreamServer) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. It closes ln and all
// open connections before returning.
func (s *StreamServer) Serve(ctx context.Context, ln net.Listener) error {
	log.Info().Str("addr", ln.Addr().String()).Msg("stream server listening")

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
		s.mu.Lock()
		for c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()
	})
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				log.Info().Msg("stream server stopped")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			log.Warn().Err(err).Msg("accept failed")
			continue
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *StreamServer) serveConn(ctx context.Context, conn net.Conn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	sess := session.New(s.workingDir)
	remote := conn.RemoteAddr().String()
	log.Info().Str("remote", remote).Str("session", sess.ID()).Msg("stream client connected")

	r := bufio.NewReader(conn)
	enc := json.NewEncoder(conn)
	for {
		line, err := r.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var req Request
			if jerr := json.Unmarshal(line, &req); jerr != nil {
				log.Warn().Err(jerr).Str("remote", remote).Msg("skipping malformed line")
			} else {
				resp := s.dispatcher.Handle(ctx, sess, req)
				if werr := enc.Encode(resp); werr != nil {
					log.Warn().Err(werr).Str("remote", remote).Msg("write response failed")
					return
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				log.Warn().Err(err).Str("remote", remote).Msg("read failed")
			}
			log.Info().Str("remote", remote).Msg("stream client disconnected")
			return
		}
	}
}
