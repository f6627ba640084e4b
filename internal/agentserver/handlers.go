// SPDX-License-Identifier: MPL-2.0

package agentserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"

	"github.com/provar-ci/provar-ci/internal/agent"
)

// verbMiddleware dispatches each session to the handler for its verb.
func (s *Server) verbMiddleware() wish.Middleware {
	return func(ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			cmd := sess.Command()
			if len(cmd) != 1 {
				s.reply(sess, agent.Response{Error: fmt.Sprintf("expected exactly one verb, got %q", cmd)}, 2)
				return
			}

			var req agent.Request
			if err := json.NewDecoder(sess).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
				s.reply(sess, agent.Response{Error: "decode request: " + err.Error()}, 2)
				return
			}

			s.logger.Debug("request", "verb", cmd[0], "user", sess.User(), "remote", sess.RemoteAddr())
			switch cmd[0] {
			case agent.VerbInfo:
				s.handleInfo(sess)
			case agent.VerbLocateHome:
				s.handleLocateHome(sess, req)
			case agent.VerbExists:
				s.handleExists(sess, req)
			case agent.VerbExec:
				s.handleExec(sess, req)
			default:
				s.reply(sess, agent.Response{Error: fmt.Sprintf("unknown verb %q", cmd[0])}, 2)
			}
		}
	}
}

func (s *Server) handleInfo(sess ssh.Session) {
	node, err := s.cfg.Node.Node(sess.Context())
	if err != nil {
		s.reply(sess, agent.Response{Error: err.Error()}, 1)
		return
	}
	s.reply(sess, agent.Response{Node: &node}, 0)
}

func (s *Server) handleLocateHome(sess ssh.Session, req agent.Request) {
	home, err := s.cfg.Node.LocateHome(sess.Context(), req.Home, req.Marker)
	if err != nil {
		s.reply(sess, agent.Response{Error: err.Error()}, 1)
		return
	}
	s.reply(sess, agent.Response{Home: home}, 0)
}

func (s *Server) handleExists(sess ssh.Session, req agent.Request) {
	ok, err := s.cfg.Node.Exists(sess.Context(), req.Path)
	if err != nil {
		s.reply(sess, agent.Response{Error: err.Error()}, 1)
		return
	}
	s.reply(sess, agent.Response{Exists: ok}, 0)
}

// handleExec streams combined output on the session's stdout and exits with
// the process status. Closing the session cancels its context and kills the
// process.
func (s *Server) handleExec(sess ssh.Session, req agent.Request) {
	if req.Launch == nil {
		s.reply(sess, agent.Response{Error: "missing launch request"}, 2)
		return
	}
	launch := *req.Launch
	launch.Stdout = sess

	s.logger.Info("launch", "command", firstArg(launch.Args), "dir", launch.Dir)
	code, err := s.cfg.Node.Launch(sess.Context(), launch)
	if err != nil {
		if sess.Context().Err() != nil {
			s.logger.Warn("launch cancelled by client", "command", firstArg(launch.Args))
			return
		}
		s.logger.Error("launch failed", "command", firstArg(launch.Args), "error", err)
		writeJSON(sess.Stderr(), agent.Response{Error: err.Error()})
		_ = sess.Exit(launchFailedStatus)
		return
	}
	_ = sess.Exit(code)
}

// reply writes resp to stdout, or to stderr for errors, and exits with code.
func (s *Server) reply(sess ssh.Session, resp agent.Response, code int) {
	writeJSON(sess, resp)
	if resp.Error != "" {
		s.logger.Warn("request failed", "error", resp.Error)
	}
	_ = sess.Exit(code)
}

func writeJSON(w io.Writer, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
