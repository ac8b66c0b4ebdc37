package protocol

import (
	"encoding/binary"
	"errors"

	"github.com/google/uuid"

	"github.com/prekeynet/prekey-node/pkg/crypto/curve"
	"github.com/prekeynet/prekey-node/pkg/crypto/pqkem"
	"github.com/prekeynet/prekey-node/pkg/pqxdh"
)

// Wire constants
const (
	// Magic number for the prekey registration protocol ('PQKR')
	ProtocolMagic = 0x50514B52

	// Protocol version
	ProtocolVersion = 0x0100 // v1.0
)

var (
	ErrInvalidMagic   = errors.New("invalid protocol magic")
	ErrInvalidVersion = errors.New("unsupported protocol version")
	ErrTruncated      = errors.New("truncated message")
	ErrTrailingBytes  = errors.New("trailing bytes after message")
	ErrUnknownTag     = errors.New("unknown message tag")
	ErrMissingPayload = errors.New("missing variant payload")
)

// ===== ENCODING HELPERS =====

func appendUint16(buf []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(buf, v)
}

func appendUint32(buf []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(buf, v)
}

func appendBytes16(buf []byte, b []byte) []byte {
	buf = appendUint16(buf, uint16(len(b)))
	return append(buf, b...)
}

func appendHeader(buf []byte) []byte {
	buf = appendUint32(buf, ProtocolMagic)
	return appendUint16(buf, ProtocolVersion)
}

func appendCurvePublicKey(buf []byte, k curve.PublicKey) []byte {
	buf = append(buf, uint8(k.Type))
	return appendBytes16(buf, k.Bytes)
}

func appendIdentifiedCurvePublicKey(buf []byte, k curve.IdentifiedPublicKey) []byte {
	buf = append(buf, k.ID[:]...)
	return appendCurvePublicKey(buf, k.PublicKey)
}

func appendPQKEMPublicKey(buf []byte, k pqkem.PublicKey) []byte {
	buf = append(buf, uint8(k.Type))
	return appendBytes16(buf, k.Bytes)
}

func appendIdentifiedPQKEMPublicKey(buf []byte, k pqkem.IdentifiedPublicKey) []byte {
	buf = append(buf, k.ID[:]...)
	return appendPQKEMPublicKey(buf, k.PublicKey)
}

func appendSignedCurvePrekey(buf []byte, k *pqxdh.SignedCurvePrekey) []byte {
	buf = appendIdentifiedCurvePublicKey(buf, k.IdentifiedPublicKey)
	return append(buf, k.Signature[:]...)
}

func appendSignedPQKEMPrekey(buf []byte, k *pqxdh.SignedPQKEMPrekey) []byte {
	buf = appendIdentifiedPQKEMPublicKey(buf, k.IdentifiedPublicKey)
	return append(buf, k.Signature[:]...)
}

func appendOneTimeCurvePrekeySet(buf []byte, s *pqxdh.OneTimeCurvePrekeySet) []byte {
	buf = appendUint16(buf, uint16(len(s.Prekeys)))
	for i := range s.Prekeys {
		buf = appendIdentifiedCurvePublicKey(buf, s.Prekeys[i])
	}
	return buf
}

func appendSignedOneTimePQKEMPrekeySet(buf []byte, s *pqxdh.SignedOneTimePQKEMPrekeySet) []byte {
	buf = appendUint16(buf, uint16(len(s.Prekeys)))
	for i := range s.Prekeys {
		buf = appendSignedPQKEMPrekey(buf, &s.Prekeys[i])
	}
	return buf
}

func appendRegistrationBundle(buf []byte, b *pqxdh.RegistrationBundle) []byte {
	buf = appendCurvePublicKey(buf, b.IdentityKey)
	buf = appendSignedCurvePrekey(buf, &b.SignedCurvePrekey)
	buf = appendSignedPQKEMPrekey(buf, &b.SignedLastResortPQKEMPrekey)
	buf = appendOneTimeCurvePrekeySet(buf, &b.OneTimeCurvePrekeys)
	return appendSignedOneTimePQKEMPrekeySet(buf, &b.OneTimePQKEMPrekeys)
}

func appendPrekeyBundle(buf []byte, b *pqxdh.PrekeyBundle) []byte {
	buf = appendCurvePublicKey(buf, b.IdentityKey)
	buf = appendSignedCurvePrekey(buf, &b.SignedCurvePrekey)
	buf = appendSignedPQKEMPrekey(buf, &b.OneTimePQKEMPrekey)
	if b.OneTimeCurvePrekey != nil {
		buf = append(buf, 1)
		buf = appendIdentifiedCurvePublicKey(buf, *b.OneTimeCurvePrekey)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

// ===== DECODING HELPERS =====

// reader walks a payload frame with bounds checking.
type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) uint8() (uint8, error) {
	if r.remaining() < 1 {
		return 0, ErrTruncated
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *reader) uint16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

func (r *reader) uint32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, ErrTruncated
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) bytes16() ([]byte, error) {
	n, err := r.uint16()
	if err != nil {
		return nil, err
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	// Copy out so decoded messages do not alias the transport buffer.
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (r *reader) uuid() (uuid.UUID, error) {
	b, err := r.take(16)
	if err != nil {
		return uuid.UUID{}, err
	}
	return uuid.FromBytes(b)
}

func (r *reader) header() error {
	magic, err := r.uint32()
	if err != nil {
		return err
	}
	if magic != ProtocolMagic {
		return ErrInvalidMagic
	}
	version, err := r.uint16()
	if err != nil {
		return err
	}
	if version != ProtocolVersion {
		return ErrInvalidVersion
	}
	return nil
}

func (r *reader) curvePublicKey() (curve.PublicKey, error) {
	tag, err := r.uint8()
	if err != nil {
		return curve.PublicKey{}, err
	}
	b, err := r.bytes16()
	if err != nil {
		return curve.PublicKey{}, err
	}
	return curve.NewPublicKey(tag, b)
}

func (r *reader) identifiedCurvePublicKey() (curve.IdentifiedPublicKey, error) {
	id, err := r.uuid()
	if err != nil {
		return curve.IdentifiedPublicKey{}, err
	}
	pk, err := r.curvePublicKey()
	if err != nil {
		return curve.IdentifiedPublicKey{}, err
	}
	return curve.IdentifiedPublicKey{ID: id, PublicKey: pk}, nil
}

func (r *reader) pqkemPublicKey() (pqkem.PublicKey, error) {
	tag, err := r.uint8()
	if err != nil {
		return pqkem.PublicKey{}, err
	}
	b, err := r.bytes16()
	if err != nil {
		return pqkem.PublicKey{}, err
	}
	return pqkem.NewPublicKey(tag, b)
}

func (r *reader) identifiedPQKEMPublicKey() (pqkem.IdentifiedPublicKey, error) {
	id, err := r.uuid()
	if err != nil {
		return pqkem.IdentifiedPublicKey{}, err
	}
	pk, err := r.pqkemPublicKey()
	if err != nil {
		return pqkem.IdentifiedPublicKey{}, err
	}
	return pqkem.IdentifiedPublicKey{ID: id, PublicKey: pk}, nil
}

func (r *reader) signature() ([64]byte, error) {
	var sig [64]byte
	b, err := r.take(64)
	if err != nil {
		return sig, err
	}
	copy(sig[:], b)
	return sig, nil
}

func (r *reader) signedCurvePrekey() (pqxdh.SignedCurvePrekey, error) {
	ipk, err := r.identifiedCurvePublicKey()
	if err != nil {
		return pqxdh.SignedCurvePrekey{}, err
	}
	sig, err := r.signature()
	if err != nil {
		return pqxdh.SignedCurvePrekey{}, err
	}
	return pqxdh.SignedCurvePrekey{IdentifiedPublicKey: ipk, Signature: sig}, nil
}

func (r *reader) signedPQKEMPrekey() (pqxdh.SignedPQKEMPrekey, error) {
	ipk, err := r.identifiedPQKEMPublicKey()
	if err != nil {
		return pqxdh.SignedPQKEMPrekey{}, err
	}
	sig, err := r.signature()
	if err != nil {
		return pqxdh.SignedPQKEMPrekey{}, err
	}
	return pqxdh.SignedPQKEMPrekey{IdentifiedPublicKey: ipk, Signature: sig}, nil
}

func (r *reader) oneTimeCurvePrekeySet() (pqxdh.OneTimeCurvePrekeySet, error) {
	count, err := r.uint16()
	if err != nil {
		return pqxdh.OneTimeCurvePrekeySet{}, err
	}
	set := pqxdh.OneTimeCurvePrekeySet{Prekeys: make([]curve.IdentifiedPublicKey, 0, count)}
	for i := 0; i < int(count); i++ {
		pk, err := r.identifiedCurvePublicKey()
		if err != nil {
			return pqxdh.OneTimeCurvePrekeySet{}, err
		}
		set.Prekeys = append(set.Prekeys, pk)
	}
	return set, nil
}

func (r *reader) signedOneTimePQKEMPrekeySet() (pqxdh.SignedOneTimePQKEMPrekeySet, error) {
	count, err := r.uint16()
	if err != nil {
		return pqxdh.SignedOneTimePQKEMPrekeySet{}, err
	}
	set := pqxdh.SignedOneTimePQKEMPrekeySet{Prekeys: make([]pqxdh.SignedPQKEMPrekey, 0, count)}
	for i := 0; i < int(count); i++ {
		pk, err := r.signedPQKEMPrekey()
		if err != nil {
			return pqxdh.SignedOneTimePQKEMPrekeySet{}, err
		}
		set.Prekeys = append(set.Prekeys, pk)
	}
	return set, nil
}

func (r *reader) registrationBundle() (*pqxdh.RegistrationBundle, error) {
	identity, err := r.curvePublicKey()
	if err != nil {
		return nil, err
	}
	signedCurve, err := r.signedCurvePrekey()
	if err != nil {
		return nil, err
	}
	signedLastResort, err := r.signedPQKEMPrekey()
	if err != nil {
		return nil, err
	}
	curveSet, err := r.oneTimeCurvePrekeySet()
	if err != nil {
		return nil, err
	}
	pqkemSet, err := r.signedOneTimePQKEMPrekeySet()
	if err != nil {
		return nil, err
	}
	return &pqxdh.RegistrationBundle{
		IdentityKey:                 identity,
		SignedCurvePrekey:           signedCurve,
		SignedLastResortPQKEMPrekey: signedLastResort,
		OneTimeCurvePrekeys:         curveSet,
		OneTimePQKEMPrekeys:         pqkemSet,
	}, nil
}

func (r *reader) prekeyBundle() (*pqxdh.PrekeyBundle, error) {
	identity, err := r.curvePublicKey()
	if err != nil {
		return nil, err
	}
	signedCurve, err := r.signedCurvePrekey()
	if err != nil {
		return nil, err
	}
	signedPQKEM, err := r.signedPQKEMPrekey()
	if err != nil {
		return nil, err
	}
	bundle := &pqxdh.PrekeyBundle{
		IdentityKey:        identity,
		SignedCurvePrekey:  signedCurve,
		OneTimePQKEMPrekey: signedPQKEM,
	}
	present, err := r.uint8()
	if err != nil {
		return nil, err
	}
	if present != 0 {
		pk, err := r.identifiedCurvePublicKey()
		if err != nil {
			return nil, err
		}
		bundle.OneTimeCurvePrekey = &pk
	}
	return bundle, nil
}

// ===== CLIENT MESSAGES =====

// EncodeClientMessage serializes a client message into one payload frame.
func EncodeClientMessage(m *ClientMessage) ([]byte, error) {
	buf := appendHeader(nil)
	buf = append(buf, uint8(m.Type))
	buf = append(buf, m.ClientID[:]...)

	switch m.Type {
	case MsgClientHello:
		// No body.
	case MsgRegistrationBundle:
		if m.RegistrationBundle == nil {
			return nil, ErrMissingPayload
		}
		buf = appendRegistrationBundle(buf, m.RegistrationBundle)
	case MsgNewKeys:
		if m.NewKeys == nil {
			return nil, ErrMissingPayload
		}
		var err error
		buf, err = appendNewKeys(buf, m.NewKeys)
		if err != nil {
			return nil, err
		}
	case MsgRequestPeerBundle:
		if m.RequestPeerBundle == nil {
			return nil, ErrMissingPayload
		}
		buf = append(buf, m.RequestPeerBundle.PeerID[:]...)
	default:
		return nil, ErrUnknownTag
	}

	return buf, nil
}

func appendNewKeys(buf []byte, nk *NewKeys) ([]byte, error) {
	buf = append(buf, uint8(nk.Type))
	switch nk.Type {
	case NewKeysSignedCurvePrekey:
		if nk.SignedCurvePrekey == nil {
			return nil, ErrMissingPayload
		}
		return appendSignedCurvePrekey(buf, nk.SignedCurvePrekey), nil
	case NewKeysSignedLastResortPQKEMPrekey:
		if nk.SignedLastResortPQKEMPrekey == nil {
			return nil, ErrMissingPayload
		}
		return appendSignedPQKEMPrekey(buf, nk.SignedLastResortPQKEMPrekey), nil
	case NewKeysOneTimeCurvePrekeySet:
		if nk.OneTimeCurvePrekeySet == nil {
			return nil, ErrMissingPayload
		}
		return appendOneTimeCurvePrekeySet(buf, nk.OneTimeCurvePrekeySet), nil
	case NewKeysSignedOneTimePQKEMPrekeySet:
		if nk.SignedOneTimePQKEMPrekeySet == nil {
			return nil, ErrMissingPayload
		}
		return appendSignedOneTimePQKEMPrekeySet(buf, nk.SignedOneTimePQKEMPrekeySet), nil
	}
	return nil, ErrUnknownTag
}

// DecodeClientMessage parses one payload frame into a client message.
func DecodeClientMessage(data []byte) (*ClientMessage, error) {
	r := &reader{buf: data}
	if err := r.header(); err != nil {
		return nil, err
	}

	kind, err := r.uint8()
	if err != nil {
		return nil, err
	}
	clientID, err := r.uuid()
	if err != nil {
		return nil, err
	}

	m := &ClientMessage{Type: ClientMessageType(kind), ClientID: clientID}

	switch m.Type {
	case MsgClientHello:
		// No body.
	case MsgRegistrationBundle:
		bundle, err := r.registrationBundle()
		if err != nil {
			return nil, err
		}
		m.RegistrationBundle = bundle
	case MsgNewKeys:
		nk, err := r.newKeys()
		if err != nil {
			return nil, err
		}
		m.NewKeys = nk
	case MsgRequestPeerBundle:
		peerID, err := r.uuid()
		if err != nil {
			return nil, err
		}
		m.RequestPeerBundle = &RequestPeerBundle{PeerID: peerID}
	default:
		return nil, ErrUnknownTag
	}

	if r.remaining() != 0 {
		return nil, ErrTrailingBytes
	}
	return m, nil
}

func (r *reader) newKeys() (*NewKeys, error) {
	tag, err := r.uint8()
	if err != nil {
		return nil, err
	}

	nk := &NewKeys{Type: NewKeysType(tag)}
	switch nk.Type {
	case NewKeysSignedCurvePrekey:
		k, err := r.signedCurvePrekey()
		if err != nil {
			return nil, err
		}
		nk.SignedCurvePrekey = &k
	case NewKeysSignedLastResortPQKEMPrekey:
		k, err := r.signedPQKEMPrekey()
		if err != nil {
			return nil, err
		}
		nk.SignedLastResortPQKEMPrekey = &k
	case NewKeysOneTimeCurvePrekeySet:
		s, err := r.oneTimeCurvePrekeySet()
		if err != nil {
			return nil, err
		}
		nk.OneTimeCurvePrekeySet = &s
	case NewKeysSignedOneTimePQKEMPrekeySet:
		s, err := r.signedOneTimePQKEMPrekeySet()
		if err != nil {
			return nil, err
		}
		nk.SignedOneTimePQKEMPrekeySet = &s
	default:
		return nil, ErrUnknownTag
	}
	return nk, nil
}

// ===== SERVER MESSAGES =====

// EncodeServerMessage serializes a server message into one payload frame.
func EncodeServerMessage(m *ServerMessage) ([]byte, error) {
	buf := appendHeader(nil)
	buf = append(buf, uint8(m.Type))

	switch m.Type {
	case MsgServerOk:
		// No body.
	case MsgServerError:
		buf = append(buf, uint8(m.Error))
	case MsgServerCommand:
		buf = append(buf, uint8(m.Command))
	case MsgServerData:
		if m.Data == nil {
			return nil, ErrMissingPayload
		}
		buf = append(buf, uint8(m.Data.Type))
		switch m.Data.Type {
		case DataPeerBundle:
			if m.Data.PeerBundle == nil {
				return nil, ErrMissingPayload
			}
			buf = appendPrekeyBundle(buf, m.Data.PeerBundle)
		default:
			return nil, ErrUnknownTag
		}
	default:
		return nil, ErrUnknownTag
	}

	return buf, nil
}

// DecodeServerMessage parses one payload frame into a server message.
func DecodeServerMessage(data []byte) (*ServerMessage, error) {
	r := &reader{buf: data}
	if err := r.header(); err != nil {
		return nil, err
	}

	kind, err := r.uint8()
	if err != nil {
		return nil, err
	}

	m := &ServerMessage{Type: ServerMessageType(kind)}

	switch m.Type {
	case MsgServerOk:
		// No body.
	case MsgServerError:
		code, err := r.uint8()
		if err != nil {
			return nil, err
		}
		m.Error = ServerError(code)
	case MsgServerCommand:
		code, err := r.uint8()
		if err != nil {
			return nil, err
		}
		m.Command = ServerCommand(code)
	case MsgServerData:
		dataType, err := r.uint8()
		if err != nil {
			return nil, err
		}
		switch ServerDataType(dataType) {
		case DataPeerBundle:
			bundle, err := r.prekeyBundle()
			if err != nil {
				return nil, err
			}
			m.Data = &ServerData{Type: DataPeerBundle, PeerBundle: bundle}
		default:
			return nil, ErrUnknownTag
		}
	default:
		return nil, ErrUnknownTag
	}

	if r.remaining() != 0 {
		return nil, ErrTrailingBytes
	}
	return m, nil
}
