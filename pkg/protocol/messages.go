// Package protocol defines the client/server message union of the key
// registration protocol and its binary wire codec. Transport framing
// (identity and delimiter frames) is the transport's concern; this package
// encodes and decodes single payload frames.
package protocol

import (
	"github.com/google/uuid"

	"github.com/prekeynet/prekey-node/pkg/pqxdh"
)

// Client message kinds.
type ClientMessageType uint8

const (
	MsgClientHello        ClientMessageType = 0x01
	MsgRegistrationBundle ClientMessageType = 0x02
	MsgNewKeys            ClientMessageType = 0x03
	MsgRequestPeerBundle  ClientMessageType = 0x04
)

// NewKeys variant tags.
type NewKeysType uint8

const (
	NewKeysSignedCurvePrekey           NewKeysType = 0x01
	NewKeysSignedLastResortPQKEMPrekey NewKeysType = 0x02
	NewKeysOneTimeCurvePrekeySet       NewKeysType = 0x03
	NewKeysSignedOneTimePQKEMPrekeySet NewKeysType = 0x04
)

// NewKeys carries exactly one batch of fresh key material, answering one
// server command. Type names the variant; exactly the matching pointer is
// non-nil. The decoder enforces this, so a tag with a missing payload never
// gets past DecodeClientMessage.
type NewKeys struct {
	Type NewKeysType

	SignedCurvePrekey           *pqxdh.SignedCurvePrekey
	SignedLastResortPQKEMPrekey *pqxdh.SignedPQKEMPrekey
	OneTimeCurvePrekeySet       *pqxdh.OneTimeCurvePrekeySet
	SignedOneTimePQKEMPrekeySet *pqxdh.SignedOneTimePQKEMPrekeySet
}

// RequestPeerBundle asks the server to mint a prekey bundle for a peer.
type RequestPeerBundle struct {
	PeerID uuid.UUID
}

// ClientMessage is the tagged union of everything a client can send.
type ClientMessage struct {
	Type     ClientMessageType
	ClientID uuid.UUID

	RegistrationBundle *pqxdh.RegistrationBundle
	NewKeys            *NewKeys
	RequestPeerBundle  *RequestPeerBundle
}

// NewClientHello builds the keep-alive opener for a session round.
func NewClientHello(clientID uuid.UUID) *ClientMessage {
	return &ClientMessage{Type: MsgClientHello, ClientID: clientID}
}

// Server message kinds.
type ServerMessageType uint8

const (
	MsgServerError   ServerMessageType = 0x01
	MsgServerCommand ServerMessageType = 0x02
	MsgServerOk      ServerMessageType = 0x03
	MsgServerData    ServerMessageType = 0x04
)

// ServerCommand codes instruct the client to supply key material.
type ServerCommand uint8

const (
	CmdAskForRegistrationBundle       ServerCommand = 0x01
	CmdAskForNewSPK                   ServerCommand = 0x02
	CmdAskForNewLastResortPQKEMPrekey ServerCommand = 0x03
	CmdAskForNewCOPK                  ServerCommand = 0x04
	CmdAskForNewPQOPK                 ServerCommand = 0x05
)

func (c ServerCommand) String() string {
	switch c {
	case CmdAskForRegistrationBundle:
		return "AskForRegistrationBundle"
	case CmdAskForNewSPK:
		return "AskForNewSPK"
	case CmdAskForNewLastResortPQKEMPrekey:
		return "AskForNewLastResortPQKEMPrekey"
	case CmdAskForNewCOPK:
		return "AskForNewCOPK"
	case CmdAskForNewPQOPK:
		return "AskForNewPQOPK"
	}
	return "UnknownCommand"
}

// ServerError codes terminate the current interaction.
type ServerError uint8

const (
	ErrCodeUnknownError              ServerError = 0x01
	ErrCodeCannotDecodeClientMessage ServerError = 0x02
	ErrCodeClientAlreadyRegistered   ServerError = 0x03
	ErrCodeClientNotRegistered       ServerError = 0x04
	ErrCodeBadResponse               ServerError = 0x05
)

func (e ServerError) String() string {
	switch e {
	case ErrCodeUnknownError:
		return "UnknownError"
	case ErrCodeCannotDecodeClientMessage:
		return "CannotDecodeClientMessage"
	case ErrCodeClientAlreadyRegistered:
		return "ClientAlreadyRegistered"
	case ErrCodeClientNotRegistered:
		return "ClientNotRegistered"
	case ErrCodeBadResponse:
		return "BadResponse"
	}
	return "UnknownServerError"
}

// ServerData payload kinds.
type ServerDataType uint8

const (
	DataPeerBundle ServerDataType = 0x01
)

// ServerData wraps a data-bearing server reply.
type ServerData struct {
	Type       ServerDataType
	PeerBundle *pqxdh.PrekeyBundle
}

// ServerMessage is the tagged union of everything the server can reply.
// Exactly one of Error, Command, Data is meaningful depending on Type; Ok
// carries nothing.
type ServerMessage struct {
	Type    ServerMessageType
	Error   ServerError
	Command ServerCommand
	Data    *ServerData
}

// NewServerOk builds the terminal healthy reply.
func NewServerOk() *ServerMessage {
	return &ServerMessage{Type: MsgServerOk}
}

// NewServerError builds an error reply.
func NewServerError(code ServerError) *ServerMessage {
	return &ServerMessage{Type: MsgServerError, Error: code}
}

// NewServerCommand builds a remediation command reply.
func NewServerCommand(code ServerCommand) *ServerMessage {
	return &ServerMessage{Type: MsgServerCommand, Command: code}
}

// NewServerPeerBundle builds a Data reply carrying a peer bundle.
func NewServerPeerBundle(bundle *pqxdh.PrekeyBundle) *ServerMessage {
	return &ServerMessage{
		Type: MsgServerData,
		Data: &ServerData{Type: DataPeerBundle, PeerBundle: bundle},
	}
}
