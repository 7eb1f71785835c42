package command

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/loganszeto/respkv/internal/protocol"
	"github.com/loganszeto/respkv/internal/store"
)

func (r *Registry) registerConnectionCommands() {
	r.Register("PING", pingCommand)
	r.Register("ECHO", echoCommand)
	r.Register("STATS", statsCommand)
}

func (r *Registry) registerStringCommands() {
	r.Register("GET", getCommand)
	r.Register("SET", setCommand)
}

func (r *Registry) registerKeyCommands() {
	r.Register("DEL", delCommand)
	r.Register("EXISTS", existsCommand)
	r.Register("EXPIRE", expireCommand)
	r.Register("TTL", ttlCommand)
	r.Register("PTTL", pttlCommand)
	r.Register("KEYS", keysCommand)
	r.Register("DBSIZE", dbsizeCommand)
}

func pingCommand(_ *Env, _ []string) (protocol.Value, error) {
	return protocol.SimpleString("PONG"), nil
}

func echoCommand(_ *Env, args []string) (protocol.Value, error) {
	if len(args) != 2 {
		return nil, syntaxError(args)
	}
	return protocol.BulkString(args[1]), nil
}

func getCommand(env *Env, args []string) (protocol.Value, error) {
	st, err := storageOf(env)
	if err != nil {
		return nil, err
	}
	if len(args) != 2 {
		return nil, syntaxError(args)
	}
	v, ok := st.Get(args[1])
	env.Stats.RecordGet(ok)
	if !ok {
		return protocol.Null{}, nil
	}
	return protocol.BulkString(v), nil
}

func setCommand(env *Env, args []string) (protocol.Value, error) {
	st, err := storageOf(env)
	if err != nil {
		return nil, err
	}
	if len(args) < 3 {
		return nil, syntaxError(args)
	}
	opts, err := ParseSetArgs(args[3:])
	if err != nil {
		return nil, syntaxError(args)
	}
	key, value := args[1], args[2]

	old, existed := st.Get(key)
	var prev protocol.Value = protocol.Null{}
	if existed {
		prev = protocol.BulkString(old)
	}
	if (opts.Existence == OnlyIfAbsent && existed) || (opts.Existence == OnlyIfPresent && !existed) {
		if opts.Get {
			return prev, nil
		}
		return protocol.Null{}, nil
	}

	if err := st.Set(key, value, store.SetOptions{TTL: opts.TTL()}); err != nil {
		return nil, internalError(args, err)
	}
	env.Stats.RecordSet()
	if opts.Get {
		return prev, nil
	}
	return protocol.SimpleString("OK"), nil
}

func delCommand(env *Env, args []string) (protocol.Value, error) {
	st, err := storageOf(env)
	if err != nil {
		return nil, err
	}
	if len(args) < 2 {
		return nil, syntaxError(args)
	}
	n := 0
	for _, k := range args[1:] {
		if st.Del(k) {
			n++
		}
	}
	env.Stats.RecordDel(n)
	return protocol.Integer(n), nil
}

func existsCommand(env *Env, args []string) (protocol.Value, error) {
	st, err := storageOf(env)
	if err != nil {
		return nil, err
	}
	if len(args) < 2 {
		return nil, syntaxError(args)
	}
	n := 0
	for _, k := range args[1:] {
		if st.Exists(k) {
			n++
		}
	}
	return protocol.Integer(n), nil
}

func expireCommand(env *Env, args []string) (protocol.Value, error) {
	st, err := storageOf(env)
	if err != nil {
		return nil, err
	}
	if len(args) != 3 {
		return nil, syntaxError(args)
	}
	secs, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil || secs > math.MaxInt64/int64(time.Second) {
		return nil, syntaxError(args)
	}
	// Any non-positive amount deletes the key.
	if secs < 0 {
		secs = 0
	}
	if st.Expire(args[1], time.Duration(secs)*time.Second) {
		return protocol.Integer(1), nil
	}
	return protocol.Integer(0), nil
}

func ttlCommand(env *Env, args []string) (protocol.Value, error) {
	return remaining(env, args, time.Second)
}

func pttlCommand(env *Env, args []string) (protocol.Value, error) {
	return remaining(env, args, time.Millisecond)
}

// remaining answers TTL/PTTL: -2 for a missing key, -1 for one without a TTL,
// otherwise the time left rounded to unit.
func remaining(env *Env, args []string, unit time.Duration) (protocol.Value, error) {
	st, err := storageOf(env)
	if err != nil {
		return nil, err
	}
	if len(args) != 2 {
		return nil, syntaxError(args)
	}
	ttl, ok := st.TTL(args[1])
	switch {
	case !ok:
		return protocol.Integer(-2), nil
	case ttl == store.NoTTL:
		return protocol.Integer(-1), nil
	default:
		return protocol.Integer((ttl + unit/2) / unit), nil
	}
}

func keysCommand(env *Env, args []string) (protocol.Value, error) {
	st, err := storageOf(env)
	if err != nil {
		return nil, err
	}
	if len(args) != 2 {
		return nil, syntaxError(args)
	}
	pattern := args[1]
	var keys []string
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		keys = st.Keys(prefix)
	} else if st.Exists(pattern) {
		keys = []string{pattern}
	}
	out := make(protocol.Array, 0, len(keys))
	for _, k := range keys {
		out = append(out, protocol.BulkString(k))
	}
	return out, nil
}

func dbsizeCommand(env *Env, args []string) (protocol.Value, error) {
	st, err := storageOf(env)
	if err != nil {
		return nil, err
	}
	return protocol.Integer(st.Len()), nil
}

func statsCommand(env *Env, _ []string) (protocol.Value, error) {
	snap := env.Stats.Snapshot()
	if env.Store != nil {
		snap["keys"] = int64(env.Store.Len())
	}
	names := make([]string, 0, len(snap))
	for k := range snap {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make(protocol.Array, 0, len(names))
	for _, k := range names {
		out = append(out, protocol.BulkString(k+" "+strconv.FormatInt(snap[k], 10)))
	}
	return out, nil
}
