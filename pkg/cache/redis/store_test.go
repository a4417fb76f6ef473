package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ogulcanaydogan/genroute/pkg/cache"
)

func TestGet_Hit(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "genai:abc")).
		Return(mock.Result(mock.RedisString(`{"text":"hi"}`)))

	got, err := NewStoreForTest(c).Get(context.Background(), "genai", "abc")
	require.NoError(t, err)
	assert.Equal(t, `{"text":"hi"}`, string(got))
}

func TestGet_NilIsMiss(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "genai:abc")).
		Return(mock.Result(mock.RedisNil()))

	_, err := NewStoreForTest(c).Get(context.Background(), "genai", "abc")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestGet_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "genai:abc")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	_, err := NewStoreForTest(c).Get(context.Background(), "genai", "abc")
	require.Error(t, err)
	assert.False(t, errors.Is(err, cache.ErrMiss))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSet_WithTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "genai:abc", "payload", "EX", "3600")).
		Return(mock.Result(mock.RedisString("OK")))

	err := NewStoreForTest(c).Set(context.Background(), "genai", "abc", []byte("payload"), time.Hour)
	assert.NoError(t, err)
}

func TestSet_NoTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return len(cmd) == 3 && cmd[0] == "SET" && cmd[1] == "genai:abc"
		})).
		Return(mock.Result(mock.RedisString("OK")))

	err := NewStoreForTest(c).Set(context.Background(), "genai", "abc", []byte("payload"), 0)
	assert.NoError(t, err)
}

func TestSet_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "SET" })).
		Return(mock.ErrorResult(errors.New("READONLY You can't write against a read only replica")))

	err := NewStoreForTest(c).Set(context.Background(), "genai", "abc", []byte("x"), time.Minute)
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("DEL", "genai:abc")).
		Return(mock.Result(mock.RedisInt64(1)))

	assert.NoError(t, NewStoreForTest(c).Delete(context.Background(), "genai", "abc"))
}

func TestPing(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	assert.NoError(t, NewStoreForTest(c).Ping(context.Background()))
}

func TestNewStore_RequiresAddrs(t *testing.T) {
	_, err := NewStore(Config{})
	assert.Error(t, err)
}
