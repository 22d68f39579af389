package tokenstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

const sessionFormatVersionCurrent = 1

const flagEmailVerified = 1 << 0

// Tokens are the largest fields (JWTs routinely exceed 255 bytes), so
// every string field carries a uint16 big-endian length prefix.
const maxFieldLength = math.MaxUint16

func writeString(buf *bytes.Buffer, name, value string) error {
	if len(value) > maxFieldLength {
		return errors.New(name + " too long")
	}
	var lenBytes [2]byte
	binary.BigEndian.PutUint16(lenBytes[:], uint16(len(value)))
	buf.Write(lenBytes[:])
	buf.WriteString(value)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	var lenBytes [2]byte
	if _, err := io.ReadFull(reader, lenBytes[:]); err != nil {
		return "", err
	}
	length := binary.BigEndian.Uint16(lenBytes[:])
	if length == 0 {
		return "", nil
	}
	value := make([]byte, length)
	if _, err := io.ReadFull(reader, value); err != nil {
		return "", err
	}
	return string(value), nil
}

func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionCurrent)

	if err := writeString(&buf, "userID", s.UserID); err != nil {
		return nil, err
	}
	if err := writeString(&buf, "email", s.Email); err != nil {
		return nil, err
	}
	if err := writeString(&buf, "name", s.Name); err != nil {
		return nil, err
	}
	if err := writeString(&buf, "avatarURL", s.AvatarURL); err != nil {
		return nil, err
	}
	if err := writeString(&buf, "accessToken", s.AccessToken); err != nil {
		return nil, err
	}
	if err := writeString(&buf, "refreshToken", s.RefreshToken); err != nil {
		return nil, err
	}

	var flags byte
	if s.EmailVerified {
		flags |= flagEmailVerified
	}
	buf.WriteByte(flags)

	if err := binary.Write(&buf, binary.BigEndian, s.LastLoginAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, errors.New("invalid session version")
	}

	s := &Session{}

	if s.UserID, err = readString(reader); err != nil {
		return nil, err
	}
	if s.Email, err = readString(reader); err != nil {
		return nil, err
	}
	if s.Name, err = readString(reader); err != nil {
		return nil, err
	}
	if s.AvatarURL, err = readString(reader); err != nil {
		return nil, err
	}
	if s.AccessToken, err = readString(reader); err != nil {
		return nil, err
	}
	if s.RefreshToken, err = readString(reader); err != nil {
		return nil, err
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	s.EmailVerified = flags&flagEmailVerified != 0

	if err := binary.Read(reader, binary.BigEndian, &s.LastLoginAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes after session payload")
	}

	return s, nil
}
