package console

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Meta commands understood by the console
const (
	MetaConnect    = "connect"
	MetaDisconnect = "disconnect"
	MetaMethods    = "methods"
	MetaStats      = "stats"
	MetaHealth     = "health"
	MetaClear      = "clear"
	MetaHelp       = "help"
	MetaQuit       = "quit"
)

var metaAliases = map[string]string{
	MetaConnect:    MetaConnect,
	MetaDisconnect: MetaDisconnect,
	MetaMethods:    MetaMethods,
	MetaStats:      MetaStats,
	MetaHealth:     MetaHealth,
	MetaClear:      MetaClear,
	MetaHelp:       MetaHelp,
	"?":            MetaHelp,
	MetaQuit:       MetaQuit,
	"exit":         MetaQuit,
	"q":            MetaQuit,
}

// ErrEmptyInput is returned for blank lines
var ErrEmptyInput = errors.New("empty input")

// Command is one parsed console line: either a meta command or an RPC call
type Command struct {
	Meta   string
	Args   []string
	Method string
	Params json.RawMessage
}

// IsMeta reports whether the line was a slash command
func (c Command) IsMeta() bool {
	return c.Meta != ""
}

// ParseInput parses `/meta args...` or `method [json-params]`. Params must be
// a JSON object or array when present.
func ParseInput(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, ErrEmptyInput
	}

	if strings.HasPrefix(line, "/") {
		fields := strings.Fields(line[1:])
		if len(fields) == 0 {
			return Command{}, fmt.Errorf("missing command after '/'")
		}
		meta, ok := metaAliases[strings.ToLower(fields[0])]
		if !ok {
			return Command{}, fmt.Errorf("unknown command /%s (try /help)", fields[0])
		}
		return Command{Meta: meta, Args: fields[1:]}, nil
	}

	method, rest, _ := strings.Cut(line, " ")
	if idx := strings.IndexAny(method, "\t{["); idx > 0 {
		// tolerate `design.get{"id":"x"}` and tab separators
		rest = method[idx:] + " " + rest
		method = method[:idx]
	}
	rest = strings.TrimSpace(rest)
	if strings.ContainsAny(method[:1], "{[\"") {
		return Command{}, fmt.Errorf("missing method name before params")
	}

	cmd := Command{Method: method}
	if rest == "" {
		return cmd, nil
	}
	if rest[0] != '{' && rest[0] != '[' {
		return Command{}, fmt.Errorf("params for %s must be a JSON object or array", method)
	}
	if !json.Valid([]byte(rest)) {
		return Command{}, fmt.Errorf("params for %s are not valid JSON", method)
	}
	cmd.Params = json.RawMessage(rest)
	return cmd, nil
}

const helpText = `Type a method name followed by JSON params, for example:
  design.create {"name":"Launch poster","width":1080,"height":1350}
  template.search {"query":"poster","types":["flyer"]}
  ai.generateDesign {"prompt":"minimal coffee shop logo"}

Commands:
  /connect      connect now, or retry after reconnection gave up
  /disconnect   close the connection and cancel pending calls
  /methods      list the methods the peer serves
  /stats        show call statistics
  /health       ping the peer and show liveness history
  /clear        clear the transcript
  /quit         leave the console`
