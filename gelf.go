package feeder

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// syslog severities used as GELF levels
const (
	LogEmerg   = 0 /* system is unusable */
	LogAlert   = 1 /* action must be taken immediately */
	LogCrit    = 2 /* critical conditions */
	LogErr     = 3 /* error conditions */
	LogWarning = 4 /* warning conditions */
	LogNotice  = 5 /* normal but significant condition */
	LogInfo    = 6 /* informational */
	LogDebug   = 7 /* debug-level messages */
)

// GELFMessage A GELF message is a JSON string with the following fields:
// https://go2docs.graylog.org/5-0/getting_in_log_data/gelf.html#GELFPayloadSpecification
type GELFMessage struct {
	Version  string  `json:"version"`
	Host     string  `json:"host"`
	Short    string  `json:"short_message"`
	Full     string  `json:"full_message,omitempty"`
	TimeUnix float64 `json:"timestamp"`
	Level    int32   `json:"level"`
	// Facility @Deprecated send as additional field instead
	Facility string                 `json:"facility,omitempty"`
	Extra    map[string]interface{} `json:"-"`
}

type innerMessage GELFMessage // against circular (Un)MarshalJSON

func (m *GELFMessage) MarshalJSON() ([]byte, error) {
	var err error
	var b, eb []byte

	extra := m.Extra
	b, err = json.Marshal((*innerMessage)(m))
	m.Extra = extra
	if err != nil {
		return nil, err
	}

	if len(extra) == 0 {
		return b, nil
	}

	if eb, err = json.Marshal(extra); err != nil {
		return nil, err
	}

	// merge serialized message + serialized extra map
	b[len(b)-1] = ','
	return append(b, eb[1:]...), nil
}

func (m *GELFMessage) UnmarshalJSON(data []byte) error {
	i := make(map[string]interface{}, 16)
	if err := json.Unmarshal(data, &i); err != nil {
		return err
	}
	for k, v := range i {
		if strings.HasPrefix(k, "_") {
			if m.Extra == nil {
				m.Extra = make(map[string]interface{}, 1)
			}
			m.Extra[k] = v
			continue
		}
		switch k {
		case "version":
			m.Version, _ = v.(string)
		case "host":
			m.Host, _ = v.(string)
		case "short_message":
			m.Short, _ = v.(string)
		case "full_message":
			m.Full, _ = v.(string)
		case "timestamp":
			m.TimeUnix, _ = v.(float64)
		case "level":
			f, _ := v.(float64)
			m.Level = int32(f)
		case "facility":
			m.Facility, _ = v.(string)
		}
	}
	return nil
}

// newGELFMessage turns a record into a GELF message. Text is split into a
// first-line short message and the full text; documents contribute their
// "message" (or "short_message") as text and every other field as an
// additional field.
func newGELFMessage(r Record, host string, level int32, facility string, now time.Time) (*GELFMessage, error) {
	var text string
	extra := map[string]interface{}{}

	switch v := r.(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		doc, err := encodeDocument(r)
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(doc))
		for k := range doc {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch k {
			case "message", "short_message":
				if text == "" {
					text = fmt.Sprint(doc[k])
				}
			case "_id", "id":
				// "_id" is reserved by GELF
				extra["_record_id"] = doc[k]
			default:
				extra["_"+k] = doc[k]
			}
		}
		if text == "" {
			b, err := json.Marshal(doc)
			if err != nil {
				return nil, err
			}
			text = string(b)
		}
	}

	p := bytes.TrimSpace([]byte(text))

	// multi-line text keeps the first line as short message
	short := p
	full := []byte("")
	if i := bytes.IndexRune(p, '\n'); i > 0 {
		short = p[:i]
		full = p
	}
	if len(short) == 0 {
		short = []byte("-")
	}

	return &GELFMessage{
		Version:  "1.1",
		Host:     host,
		Short:    string(short),
		Full:     string(full),
		TimeUnix: float64(now.UnixNano()/1000000) / 1000.,
		Level:    level,
		Facility: facility,
		Extra:    extra,
	}, nil
}

// Used to control GELF chunking.  Should be less than (MTU - len(UDP header)).
const (
	ChunkSize        = 1420
	chunkedHeaderLen = 12
	chunkedDataLen   = ChunkSize - chunkedHeaderLen
	maxChunks        = 255
)

var (
	magicChunked = []byte{0x1e, 0x0f}
)

// numChunks returns the number of GELF chunks necessary to transmit
// the given compressed buffer.
func numChunks(b []byte) int {
	lenB := len(b)
	if lenB <= ChunkSize {
		return 1
	} else if len(b)%chunkedDataLen == 0 {
		return len(b) / chunkedDataLen
	} else {
		return len(b)/chunkedDataLen + 1
	}
}

// compressGELF gzips a serialized message the way GELF UDP inputs expect.
func compressGELF(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, flate.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err = zw.Write(data); err != nil {
		return nil, err
	}
	// ensure all data is written
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeChunked writes bs as a single datagram, or as GELF chunks when it
// does not fit in one.
func writeChunked(w io.Writer, bs []byte) error {
	chunkCount := numChunks(bs)
	if chunkCount > maxChunks {
		return fmt.Errorf("msg too large, would need %d chunks", chunkCount)
	}
	nChunks := uint8(chunkCount)
	if nChunks == 1 {
		n, err := w.Write(bs)
		if err != nil {
			return err
		}
		if n != len(bs) {
			return fmt.Errorf("write (%d/%d)", n, len(bs))
		}
		return nil
	}
	// use random to get a unique message id
	msgId := make([]byte, 8)
	n, err := io.ReadFull(rand.Reader, msgId)
	if err != nil || n != 8 {
		return fmt.Errorf("rand.Reader: %d/%s", n, err)
	}

	buf := bytes.NewBuffer(make([]byte, 0, ChunkSize))
	bytesLeft := len(bs)
	for i := uint8(0); i < nChunks; i++ {
		buf.Reset()
		// manually write header; every field is a single byte or a
		// byte string, so byte order does not matter
		buf.Write(magicChunked) //magic
		buf.Write(msgId)
		buf.WriteByte(i)
		buf.WriteByte(nChunks)
		// slice out our chunk from bs
		chunkLen := chunkedDataLen
		if chunkLen > bytesLeft {
			chunkLen = bytesLeft
		}
		off := int(i) * chunkedDataLen
		buf.Write(bs[off : off+chunkLen])

		// write this chunk, and make sure the write was good
		n, err := w.Write(buf.Bytes())
		if err != nil {
			return fmt.Errorf("write (chunk %d/%d): %s", i, nChunks, err)
		}
		if n != buf.Len() {
			return fmt.Errorf("write len: (chunk %d/%d) (%d/%d)", i, nChunks, n, buf.Len())
		}

		bytesLeft -= chunkLen
	}

	if bytesLeft != 0 {
		return fmt.Errorf("error: %d bytes left after sending", bytesLeft)
	}
	return nil
}
