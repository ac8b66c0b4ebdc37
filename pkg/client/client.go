// Package client implements the Client Agent: it owns the private key
// bundle, keeps a session to the registration server, and services server
// commands by generating, signing and persisting fresh key material.
package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/google/uuid"

	"github.com/prekeynet/prekey-node/pkg/config"
	"github.com/prekeynet/prekey-node/pkg/crypto/curve"
	"github.com/prekeynet/prekey-node/pkg/crypto/pqkem"
	"github.com/prekeynet/prekey-node/pkg/pqxdh"
	"github.com/prekeynet/prekey-node/pkg/protocol"
	"github.com/prekeynet/prekey-node/pkg/storage"
)

var (
	ErrServerRejected  = errors.New("server rejected the request")
	ErrUnexpectedReply = errors.New("unexpected server reply")
	ErrPeerNotFound    = errors.New("peer not registered")
)

// Client is a running client agent. The socket is owned by its mutex for
// the duration of one logical round; the storage handle serializes its own
// access.
type Client struct {
	clientID uuid.UUID
	store    *storage.ClientStore
	curveAlg curve.Algorithm
	kemAlg   pqkem.Algorithm
	cfg      *config.ClientConfig

	socketMu sync.Mutex
	socket   zmq4.Socket

	cancel context.CancelFunc
	done   chan struct{}
}

// Start initializes storage, acquires or creates the client identity and
// private bundle, connects to the server, and runs one full hello round
// before spawning the heartbeat. It returns once the session is healthy.
func Start(ctx context.Context, store *storage.ClientStore, curveAlg curve.Algorithm, kemAlg pqkem.Algorithm, cfg *config.ClientConfig) (*Client, error) {
	if err := store.InitClient(); err != nil {
		return nil, fmt.Errorf("failed to initialize client storage: %w", err)
	}

	clientID, err := initializeIdentity(store, curveAlg, kemAlg, cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("Client identity: %s", clientID)

	runCtx, cancel := context.WithCancel(ctx)

	socket := zmq4.NewDealer(runCtx, zmq4.WithID(zmq4.SocketIdentity(string(clientID[:]))))
	if err := socket.Dial(cfg.Endpoint); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Endpoint, err)
	}
	log.Printf("Connected to server at %s", cfg.Endpoint)

	c := &Client{
		clientID: clientID,
		store:    store,
		curveAlg: curveAlg,
		kemAlg:   kemAlg,
		cfg:      cfg,
		socket:   socket,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	// First round synchronously: registration happens here on a fresh
	// client, so a caller returning from Start has a healthy bundle.
	if err := c.helloRound(); err != nil {
		cancel()
		socket.Close()
		return nil, err
	}

	go c.heartbeatLoop(runCtx)

	return c, nil
}

// ClientID returns the client's UUID.
func (c *Client) ClientID() uuid.UUID {
	return c.clientID
}

// Close stops the heartbeat and releases the socket. The storage handle
// stays open; it belongs to the caller. Closing the socket unblocks a
// heartbeat waiting in a receive.
func (c *Client) Close() error {
	c.cancel()
	err := c.socket.Close()
	<-c.done
	return err
}

// initializeIdentity loads the stored client or generates a fresh private
// bundle and UUID, persisting both atomically.
func initializeIdentity(store *storage.ClientStore, curveAlg curve.Algorithm, kemAlg pqkem.Algorithm, cfg *config.ClientConfig) (uuid.UUID, error) {
	exists, err := store.ContainsClient()
	if err != nil {
		return uuid.UUID{}, err
	}
	if exists {
		return store.GetClientUUID()
	}

	log.Printf("No stored client, generating private bundle...")
	bundle, err := pqxdh.NewPrivateBundle(curveAlg, kemAlg, cfg.OneTimeCurvePrekeys, cfg.OneTimePQKEMPrekeys)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("failed to generate private bundle: %w", err)
	}
	defer bundle.Zero()

	clientID := uuid.New()
	if err := store.CreateClient(clientID, bundle); err != nil {
		return uuid.UUID{}, fmt.Errorf("failed to persist private bundle: %w", err)
	}
	return clientID, nil
}

// heartbeatLoop runs hello rounds at the configured interval. A transport
// error or a server error ends the loop for good; nothing reconnects the
// session or restarts the loop afterwards.
func (c *Client) heartbeatLoop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.cfg.HeartbeatInterval.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.helloRound(); err != nil {
				if ctx.Err() == nil {
					log.Printf("Heartbeat error: %v", err)
				}
				return
			}
		}
	}
}

// helloRound runs one full conversation: ClientHello, then one command
// answered per round trip, until the server replies Ok or an error.
func (c *Client) helloRound() error {
	c.socketMu.Lock()
	defer c.socketMu.Unlock()

	if err := c.send(protocol.NewClientHello(c.clientID)); err != nil {
		return err
	}

	for {
		reply, err := c.recv()
		if err != nil {
			return err
		}

		switch reply.Type {
		case protocol.MsgServerOk:
			return nil
		case protocol.MsgServerError:
			return fmt.Errorf("%w: %s", ErrServerRejected, reply.Error)
		case protocol.MsgServerCommand:
			response, err := c.handleServerCommand(reply.Command)
			if err != nil {
				return err
			}
			if err := c.send(response); err != nil {
				return err
			}
		default:
			return ErrUnexpectedReply
		}
	}
}

// RequestPeerBundle fetches a peer's prekey bundle from the server,
// consuming one-time slots server-side.
func (c *Client) RequestPeerBundle(peerID uuid.UUID) (*pqxdh.PrekeyBundle, error) {
	c.socketMu.Lock()
	defer c.socketMu.Unlock()

	request := &protocol.ClientMessage{
		Type:              protocol.MsgRequestPeerBundle,
		ClientID:          c.clientID,
		RequestPeerBundle: &protocol.RequestPeerBundle{PeerID: peerID},
	}
	if err := c.send(request); err != nil {
		return nil, err
	}

	reply, err := c.recv()
	if err != nil {
		return nil, err
	}

	switch reply.Type {
	case protocol.MsgServerData:
		if reply.Data == nil || reply.Data.PeerBundle == nil {
			return nil, ErrUnexpectedReply
		}
		return reply.Data.PeerBundle, nil
	case protocol.MsgServerError:
		if reply.Error == protocol.ErrCodeClientNotRegistered {
			return nil, ErrPeerNotFound
		}
		return nil, fmt.Errorf("%w: %s", ErrServerRejected, reply.Error)
	}
	return nil, ErrUnexpectedReply
}

// send writes one logical message as delimiter + payload frames. Callers
// hold the socket mutex.
func (c *Client) send(m *protocol.ClientMessage) error {
	payload, err := protocol.EncodeClientMessage(m)
	if err != nil {
		return err
	}
	return c.socket.Send(zmq4.NewMsgFrom([]byte{}, payload))
}

// recv reads one logical reply. Callers hold the socket mutex.
func (c *Client) recv() (*protocol.ServerMessage, error) {
	msg, err := c.socket.Recv()
	if err != nil {
		return nil, err
	}
	if len(msg.Frames) != 2 || len(msg.Frames[0]) != 0 {
		return nil, ErrUnexpectedReply
	}
	return protocol.DecodeServerMessage(msg.Frames[1])
}
