package redis

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// fakeServer speaks just enough RESP to exercise Store without a real Redis.
type fakeServer struct {
	mu      sync.Mutex
	data    map[string]string
	expires map[string]time.Time
	cmds    []string
	now     func() time.Time
	// When stall is set, replies are held until it is closed and every
	// received command is announced on stalled.
	stall   chan struct{}
	stalled chan string
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		data:    map[string]string{},
		expires: map[string]time.Time{},
		now:     time.Now,
	}
}

func (f *fakeServer) dial(context.Context, Options) (net.Conn, error) {
	client, server := net.Pipe()
	go f.serve(server)
	return client, nil
}

func (f *fakeServer) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cmds...)
}

func (f *fakeServer) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		req, err := readReply(r)
		if err != nil {
			return
		}
		items, _ := req.([]any)
		args := make([]string, 0, len(items))
		for _, it := range items {
			b, _ := it.([]byte)
			args = append(args, string(b))
		}
		reply := f.handle(args)
		f.mu.Lock()
		stall, stalled := f.stall, f.stalled
		f.mu.Unlock()
		if stall != nil {
			stalled <- strings.Join(args, " ")
			<-stall
		}
		if _, err := conn.Write([]byte(reply)); err != nil {
			return
		}
	}
}

func (f *fakeServer) live(key string) (string, bool) {
	v, ok := f.data[key]
	if !ok {
		return "", false
	}
	if exp, ok := f.expires[key]; ok && !f.now().Before(exp) {
		delete(f.data, key)
		delete(f.expires, key)
		return "", false
	}
	return v, true
}

func (f *fakeServer) handle(args []string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(args) == 0 {
		return "-ERR empty command\r\n"
	}
	f.cmds = append(f.cmds, strings.ToUpper(args[0]))

	switch strings.ToUpper(args[0]) {
	case "PING":
		return "+PONG\r\n"
	case "AUTH", "SELECT":
		return "+OK\r\n"
	case "GET":
		v, ok := f.live(args[1])
		if !ok {
			return "$-1\r\n"
		}
		return bulk(v)
	case "SET":
		f.data[args[1]] = args[2]
		delete(f.expires, args[1])
		if len(args) == 5 && strings.EqualFold(args[3], "PX") {
			ms, _ := strconv.Atoi(args[4])
			f.expires[args[1]] = f.now().Add(time.Duration(ms) * time.Millisecond)
		}
		return "+OK\r\n"
	case "DEL", "UNLINK":
		n := 0
		for _, k := range args[1:] {
			if _, ok := f.live(k); ok {
				delete(f.data, k)
				delete(f.expires, k)
				n++
			}
		}
		return fmt.Sprintf(":%d\r\n", n)
	case "SCAN":
		pattern := "*"
		for i := 2; i+1 < len(args); i += 2 {
			if strings.EqualFold(args[i], "MATCH") {
				pattern = args[i+1]
			}
		}
		var keys []string
		for k := range f.data {
			if ok, _ := path.Match(pattern, k); ok {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString("*2\r\n")
		b.WriteString(bulk("0"))
		fmt.Fprintf(&b, "*%d\r\n", len(keys))
		for _, k := range keys {
			b.WriteString(bulk(k))
		}
		return b.String()
	default:
		return "-ERR unknown command\r\n"
	}
}

func bulk(s string) string {
	return fmt.Sprintf("$%d\r\n%s\r\n", len(s), s)
}
