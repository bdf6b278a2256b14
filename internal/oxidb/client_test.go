package oxidb

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer answers frames on the server side of a net.Pipe.
func fakeServer(t *testing.T, handle func(req map[string]any) map[string]any) *Client {
	t.Helper()
	srv, cli := net.Pipe()
	go func() {
		defer srv.Close()
		for {
			var lenBuf [4]byte
			if _, err := io.ReadFull(srv, lenBuf[:]); err != nil {
				return
			}
			payload := make([]byte, binary.LittleEndian.Uint32(lenBuf[:]))
			if _, err := io.ReadFull(srv, payload); err != nil {
				return
			}
			var req map[string]any
			if err := json.Unmarshal(payload, &req); err != nil {
				return
			}
			out, _ := json.Marshal(handle(req))
			frame := make([]byte, 4+len(out))
			binary.LittleEndian.PutUint32(frame, uint32(len(out)))
			copy(frame[4:], out)
			if _, err := srv.Write(frame); err != nil {
				return
			}
		}
	}()
	c := NewClient(cli)
	t.Cleanup(func() { c.Close() })
	return c
}

func ok(data any) map[string]any { return map[string]any{"ok": true, "data": data} }

func TestPing(t *testing.T) {
	c := fakeServer(t, func(req map[string]any) map[string]any {
		assert.Equal(t, "ping", req["cmd"])
		return ok("pong")
	})
	pong, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pong", pong)
}

func TestInsertAndFind(t *testing.T) {
	var seen []map[string]any
	c := fakeServer(t, func(req map[string]any) map[string]any {
		seen = append(seen, req)
		switch req["cmd"] {
		case "insert":
			return ok(map[string]any{"id": 7})
		case "find":
			return ok([]any{map[string]any{"_id": 7, "name": "Ada"}, "junk"})
		case "find_one":
			return ok(nil)
		}
		return map[string]any{"ok": false, "error": "unexpected"}
	})
	ctx := context.Background()

	id, err := c.Insert(ctx, "people", map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, 7.0, id)

	docs, err := c.Find(ctx, "people", map[string]any{"name": "Ada"}, &FindOptions{Sort: map[string]any{"name": 1}, Limit: 5})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Ada", docs[0]["name"])
	assert.Equal(t, 5.0, seen[1]["limit"])
	assert.NotContains(t, seen[1], "skip")

	doc, err := c.FindOne(ctx, "people", map[string]any{"name": "Bo"})
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestUpdateDeleteCount(t *testing.T) {
	c := fakeServer(t, func(req map[string]any) map[string]any {
		switch req["cmd"] {
		case "update_one":
			return ok(map[string]any{"modified": 1})
		case "delete":
			return ok(map[string]any{"deleted": 3})
		case "count":
			return ok(map[string]any{"count": 12})
		}
		return ok(nil)
	})
	ctx := context.Background()

	n, err := c.UpdateOne(ctx, "c", map[string]any{"id": "x"}, map[string]any{"$set": map[string]any{"a": 1}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = c.Delete(ctx, "c", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = c.Count(ctx, "c", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 12, n)
}

func TestServerErrors(t *testing.T) {
	c := fakeServer(t, func(req map[string]any) map[string]any {
		switch req["cmd"] {
		case "get_object":
			return map[string]any{"ok": false, "error": "Object not found"}
		case "insert":
			return map[string]any{"ok": false, "error": "unique index violation on email"}
		case "create_bucket":
			return map[string]any{"ok": false, "error": "bucket already exists"}
		}
		return map[string]any{"ok": false}
	})
	ctx := context.Background()

	_, err := c.GetObject(ctx, "b", "k")
	assert.True(t, IsNotFound(err))
	_, err = c.Insert(ctx, "users", map[string]any{})
	assert.True(t, IsDuplicate(err))
	assert.True(t, IsExists(c.CreateBucket(ctx, "b")))

	_, err = c.Ping(ctx)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "unknown error", e.Msg)
	assert.False(t, c.Broken())
}

func TestObjects(t *testing.T) {
	store := map[string][]byte{}
	c := fakeServer(t, func(req map[string]any) map[string]any {
		key, _ := req["key"].(string)
		switch req["cmd"] {
		case "put_object":
			assert.Equal(t, "application/pdf", req["content_type"])
			raw, _ := base64.StdEncoding.DecodeString(req["data"].(string))
			store[key] = raw
			return ok(map[string]any{"key": key})
		case "get_object":
			return ok(map[string]any{
				"content":  base64.StdEncoding.EncodeToString(store[key]),
				"metadata": map[string]any{"content_type": "application/pdf"},
			})
		case "list_objects":
			assert.Equal(t, "tok/", req["prefix"])
			return ok([]any{map[string]any{"key": "tok/a"}})
		case "delete_object":
			delete(store, key)
			return ok(nil)
		}
		return ok(nil)
	})
	ctx := context.Background()

	require.NoError(t, c.PutObject(ctx, "docs", "tok/a", []byte("%PDF"), "application/pdf"))
	obj, err := c.GetObject(ctx, "docs", "tok/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), obj.Data)
	assert.Equal(t, "application/pdf", obj.ContentType)
	assert.Equal(t, int64(4), obj.Size)

	list, err := c.ListObjects(ctx, "docs", "tok/")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, c.DeleteObject(ctx, "docs", "tok/a"))
	assert.Empty(t, store)
}

func TestDeadlineMarksClientBroken(t *testing.T) {
	srv, cli := net.Pipe()
	defer srv.Close()
	go io.Copy(io.Discard, srv) // never replies

	c := NewClient(cli)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.Ping(ctx)
	require.Error(t, err)
	assert.True(t, c.Broken())

	_, err = c.Ping(context.Background())
	assert.ErrorIs(t, err, ErrBrokenConn)
}

func TestCancelledContextSkipsRequest(t *testing.T) {
	c := fakeServer(t, func(map[string]any) map[string]any {
		t.Error("request should not reach the server")
		return ok(nil)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Ping(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, c.Broken())
}
