// This file implements the daemon of a node and its client. They talk over a
// UNIX socket in the config folder, so that the permissions of the folder
// decide who can send commands to the node.

package node

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.dedis.ch/forecast"
	"go.dedis.ch/forecast/cli"
	"golang.org/x/xerrors"
)

const (
	socketName     = "daemon.sock"
	dialTimeout    = 30 * time.Second
	requestTimeout = 30 * time.Second
)

// reply is a message of the daemon. A request gets any number of outputs and
// at most one error, after which the daemon closes the connection.
type reply struct {
	Out string `json:"out,omitempty"`
	Err string `json:"err,omitempty"`
}

// unixClient sends each request over a new connection.
//
// - implements node.Client
type unixClient struct {
	path string
	out  io.Writer
	dial func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// Send implements node.Client. It prints every output of the action on its own
// line and returns when the daemon closes the connection, or with the error of
// the action.
func (c unixClient) Send(req Request) error {
	conn, err := c.dial("unix", c.path, dialTimeout)
	if err != nil {
		return xerrors.Errorf("failed to reach the daemon: %v", err)
	}

	defer conn.Close()

	err = json.NewEncoder(conn).Encode(req)
	if err != nil {
		return xerrors.Errorf("failed to send request: %v", err)
	}

	dec := json.NewDecoder(conn)

	for {
		var r reply

		err = dec.Decode(&r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return xerrors.Errorf("failed to read reply: %v", err)
		}

		if r.Err != "" {
			return xerrors.New(r.Err)
		}

		fmt.Fprintln(c.out, r.Out)
	}
}

// unixDaemon runs the actions requested by the clients.
//
// - implements node.Daemon
type unixDaemon struct {
	path     string
	actions  *actionMap
	injector Injector
	logger   zerolog.Logger
	timeout  time.Duration
	listen   func(network, addr string) (net.Listener, error)

	wg       sync.WaitGroup
	closing  chan struct{}
	listener net.Listener
}

// Listen implements node.Daemon. It binds the socket and serves the
// connections in the background.
func (d *unixDaemon) Listen() error {
	ln, err := d.listen("unix", d.path)
	if err != nil {
		return xerrors.Errorf("failed to bind socket: %v", err)
	}

	d.listener = ln

	d.wg.Add(1)
	go d.serve()

	return nil
}

// Close implements node.Daemon. It waits for the running actions to return.
func (d *unixDaemon) Close() error {
	close(d.closing)

	err := d.listener.Close()

	d.wg.Wait()

	if err != nil {
		return xerrors.Errorf("failed to close socket: %v", err)
	}

	return nil
}

func (d *unixDaemon) serve() {
	defer d.wg.Done()

	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-d.closing:
			default:
				d.logger.Err(err).Msg("daemon stopped unexpectedly")
			}

			return
		}

		d.wg.Add(1)

		go func() {
			defer d.wg.Done()
			d.handle(conn)
		}()
	}
}

func (d *unixDaemon) handle(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(d.timeout))

	var req Request

	err := json.NewDecoder(conn).Decode(&req)
	if err == io.EOF {
		// The client only checked that the daemon is up.
		return
	}
	if err != nil {
		d.fail(conn, xerrors.Errorf("malformed request: %v", err))
		return
	}

	action := d.actions.Get(req.Action)
	if action == nil {
		d.fail(conn, xerrors.Errorf("unknown action %d", req.Action))
		return
	}

	d.logger.Debug().
		Uint16("action", req.Action).
		Str("flags", fmt.Sprint(req.Flags)).
		Msg("executing action")

	ctx := Context{
		Injector: d.injector,
		Flags:    req.Flags,
		Out:      replyWriter{enc: json.NewEncoder(conn)},
	}

	err = action.Execute(ctx)
	if err != nil {
		d.fail(conn, xerrors.Errorf("action failed: %v", err))
	}
}

func (d *unixDaemon) fail(conn net.Conn, err error) {
	d.logger.Debug().Err(err).Msg("request failed")

	err = json.NewEncoder(conn).Encode(reply{Err: err.Error()})
	if err != nil {
		d.logger.Warn().Err(err).Msg("failed to reply to the client")
	}
}

// replyWriter sends each write of an action as one output.
//
// - implements io.Writer
type replyWriter struct {
	enc *json.Encoder
}

// Write implements io.Writer.
func (w replyWriter) Write(data []byte) (int, error) {
	err := w.enc.Encode(reply{Out: string(data)})
	if err != nil {
		return 0, xerrors.Errorf("failed to write output: %v", err)
	}

	return len(data), nil
}

// unixFactory places the socket of the daemon in the config folder.
//
// - implements node.DaemonFactory
type unixFactory struct {
	injector Injector
	actions  *actionMap
	out      io.Writer
}

// NewClient implements node.DaemonFactory.
func (f unixFactory) NewClient(flags cli.Flags) (Client, error) {
	client := unixClient{
		path: socketPath(flags),
		out:  f.out,
		dial: net.DialTimeout,
	}

	return client, nil
}

// NewDaemon implements node.DaemonFactory.
func (f unixFactory) NewDaemon(flags cli.Flags) (Daemon, error) {
	path := socketPath(flags)

	daemon := &unixDaemon{
		path:     path,
		actions:  f.actions,
		injector: f.injector,
		logger:   forecast.Logger.With().Str("daemon", path).Logger(),
		timeout:  requestTimeout,
		listen:   net.Listen,
		closing:  make(chan struct{}),
	}

	return daemon, nil
}

func socketPath(flags cli.Flags) string {
	return filepath.Join(flags.Path("config"), socketName)
}
