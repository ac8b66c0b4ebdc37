package server

import (
	"context"
	"fmt"
	"log"

	"github.com/go-zeromq/zmq4"

	"github.com/prekeynet/prekey-node/pkg/protocol"
)

// Server owns the ROUTER socket and feeds client messages to the director.
// Each logical message is two frames (empty delimiter, payload); the router
// prepends the sender identity, which carries the 16-byte client UUID.
type Server struct {
	director *Director
	endpoint string
}

// NewServer builds a server around a director.
func NewServer(director *Director, endpoint string) *Server {
	return &Server{director: director, endpoint: endpoint}
}

// Run binds the ROUTER socket and serves requests until the context is
// cancelled. One request is handled at a time: the reply is emitted only
// after the storage mutation it caused has committed.
func (s *Server) Run(ctx context.Context) error {
	socket := zmq4.NewRouter(ctx)
	defer socket.Close()

	if err := socket.Listen(s.endpoint); err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.endpoint, err)
	}
	log.Printf("Server listening on %s", s.endpoint)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := socket.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("recv failed: %w", err)
		}

		// ROUTER framing: identity, delimiter, payload.
		if len(msg.Frames) != 3 {
			log.Printf("Dropping message with %d frames", len(msg.Frames))
			continue
		}
		identity := msg.Frames[0]
		log.Printf("Received message from %x", identity)
		if len(msg.Frames[1]) != 0 {
			log.Printf("Dropping message with non-empty delimiter from %x", identity)
			continue
		}

		reply := s.handle(identity, msg.Frames[2])

		payload, err := protocol.EncodeServerMessage(reply)
		if err != nil {
			log.Printf("Error encoding reply for %x: %v", identity, err)
			continue
		}
		if err := socket.Send(zmq4.NewMsgFrom(identity, []byte{}, payload)); err != nil {
			log.Printf("Error sending reply to %x: %v", identity, err)
		}
	}
}

func (s *Server) handle(identity, payload []byte) *protocol.ServerMessage {
	clientMessage, err := protocol.DecodeClientMessage(payload)
	if err != nil {
		log.Printf("Error decoding client message from %x: %v", identity, err)
		return protocol.NewServerError(protocol.ErrCodeCannotDecodeClientMessage)
	}
	return s.director.HandleMessage(clientMessage)
}
