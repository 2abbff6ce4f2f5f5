package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const twoFactorRecordVersion1 = 1

var (
	ErrChallengeNotFound = errors.New("two-factor challenge not found")
	ErrChallengeExpired  = errors.New("two-factor challenge expired")
	ErrChallengeBackend  = errors.New("two-factor challenge backend unavailable")
)

// TwoFactorChallenge is the pending second step of a password login.
type TwoFactorChallenge struct {
	UserID    string
	IP        string
	ExpiresAt int64
	Attempts  uint16
}

// TwoFactorChallengeStore keeps pending login challenges keyed by the hash of the opaque
// challenge handed to the client.
type TwoFactorChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewTwoFactorChallengeStore(redisClient redis.UniversalClient, prefix string, now func() time.Time) *TwoFactorChallengeStore {
	if prefix == "" {
		prefix = "i2fa"
	}
	if now == nil {
		now = time.Now
	}
	return &TwoFactorChallengeStore{
		redis:  redisClient,
		prefix: prefix,
		now:    now,
	}
}

func (s *TwoFactorChallengeStore) key(challengeHash string) string {
	return s.prefix + ":" + challengeHash
}

func (s *TwoFactorChallengeStore) Save(ctx context.Context, challengeHash string, record *TwoFactorChallenge, ttl time.Duration) error {
	encoded, err := encodeTwoFactorChallenge(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(challengeHash), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return nil
}

func (s *TwoFactorChallengeStore) Get(ctx context.Context, challengeHash string) (*TwoFactorChallenge, error) {
	data, err := s.redis.Get(ctx, s.key(challengeHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}

	record, err := decodeTwoFactorChallenge(data)
	if err != nil {
		return nil, err
	}
	if s.now().Unix() >= record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(challengeHash)).Result()
		return nil, ErrChallengeExpired
	}
	return record, nil
}

// Delete removes the challenge and reports whether this call removed it, so only one
// concurrent completion can win.
func (s *TwoFactorChallengeStore) Delete(ctx context.Context, challengeHash string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(challengeHash)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return n > 0, nil
}

// RecordFailure counts a wrong code and deletes the challenge once maxAttempts is reached.
// It reports whether the challenge is now exhausted.
func (s *TwoFactorChallengeStore) RecordFailure(ctx context.Context, challengeHash string, maxAttempts int) (bool, error) {
	const maxRetries = 4
	key := s.key(challengeHash)

	for i := 0; i < maxRetries; i++ {
		var exhausted bool
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			record, err := decodeTwoFactorChallenge(data)
			if err != nil {
				return err
			}

			ttl := time.Unix(record.ExpiresAt, 0).Sub(s.now())
			record.Attempts++
			if int(record.Attempts) >= maxAttempts || ttl <= 0 {
				exhausted = true
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return err
			}

			updated, err := encodeTwoFactorChallenge(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return true, ErrChallengeNotFound
			}
			return false, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
		}
		return exhausted, nil
	}

	return false, ErrChallengeBackend
}

func encodeTwoFactorChallenge(record *TwoFactorChallenge) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(twoFactorRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	for _, field := range []string{record.UserID, record.IP} {
		if len(field) > 65535 {
			return nil, errors.New("two-factor challenge field too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}
	return buf.Bytes(), nil
}

func decodeTwoFactorChallenge(data []byte) (*TwoFactorChallenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != twoFactorRecordVersion1 {
		return nil, errors.New("invalid two-factor challenge version")
	}

	record := &TwoFactorChallenge{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	readString := func() (string, error) {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return "", err
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(reader, b); err != nil {
			return "", err
		}
		return string(b), nil
	}
	if record.UserID, err = readString(); err != nil {
		return nil, err
	}
	if record.IP, err = readString(); err != nil {
		return nil, err
	}
	return record, nil
}
