package core

import (
	"time"

	mus "github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS codecs for the values persisted by key-value backends.
// Timestamps are stored as Unix microseconds in UTC.
var (
	RecordMUS         mus.Serializer[Record]          = recordMUS{}
	VectorMUS         mus.Serializer[EmbeddingVector] = vectorMUS{}
	RunMUS            mus.Serializer[IngestionRun]    = runMUS{}
	MigrationStateMUS mus.Serializer[MigrationState]  = migrationStateMUS{}
)

type recordMUS struct{}

func (recordMUS) Marshal(v Record, bs []byte) (n int) {
	w := musWriter{bs: bs}
	w.string(v.ID)
	w.string(v.ReferenceNumber)
	w.string(v.Title)
	w.string(v.Organization)
	w.string(v.Category)
	w.string(v.Activities)
	w.string(v.Duration)
	w.string(v.Price)
	w.string(v.Location)
	w.string(v.SourceURL)
	w.timePtr(v.PublishedAt)
	w.timePtr(v.InquiryDeadline)
	w.timePtr(v.SubmissionDeadline)
	w.timePtr(v.OpeningAt)
	w.time(v.CreatedAt)
	w.time(v.UpdatedAt)
	return w.n
}

func (recordMUS) Unmarshal(bs []byte) (v Record, n int, err error) {
	r := musReader{bs: bs}
	v.ID = r.string()
	v.ReferenceNumber = r.string()
	v.Title = r.string()
	v.Organization = r.string()
	v.Category = r.string()
	v.Activities = r.string()
	v.Duration = r.string()
	v.Price = r.string()
	v.Location = r.string()
	v.SourceURL = r.string()
	v.PublishedAt = r.timePtr()
	v.InquiryDeadline = r.timePtr()
	v.SubmissionDeadline = r.timePtr()
	v.OpeningAt = r.timePtr()
	v.CreatedAt = r.time()
	v.UpdatedAt = r.time()
	return v, r.n, r.err
}

func (recordMUS) Size(v Record) (size int) {
	for _, s := range []string{v.ID, v.ReferenceNumber, v.Title, v.Organization, v.Category,
		v.Activities, v.Duration, v.Price, v.Location, v.SourceURL} {
		size += ord.String.Size(s)
	}
	for _, t := range []*time.Time{v.PublishedAt, v.InquiryDeadline, v.SubmissionDeadline, v.OpeningAt} {
		size += timePtrSize(t)
	}
	return size + timeSize(v.CreatedAt) + timeSize(v.UpdatedAt)
}

func (s recordMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type vectorMUS struct{}

func (vectorMUS) Marshal(v EmbeddingVector, bs []byte) (n int) {
	w := musWriter{bs: bs}
	w.string(v.RecordID)
	w.floats(v.Values)
	w.uint64(v.Fingerprint)
	w.time(v.CreatedAt)
	return w.n
}

func (vectorMUS) Unmarshal(bs []byte) (v EmbeddingVector, n int, err error) {
	r := musReader{bs: bs}
	v.RecordID = r.string()
	v.Values = r.floats()
	v.Fingerprint = r.uint64()
	v.CreatedAt = r.time()
	return v, r.n, r.err
}

func (vectorMUS) Size(v EmbeddingVector) int {
	return ord.String.Size(v.RecordID) + floatsSize(v.Values) +
		varint.Uint64.Size(v.Fingerprint) + timeSize(v.CreatedAt)
}

func (s vectorMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type runMUS struct{}

func (runMUS) Marshal(v IngestionRun, bs []byte) (n int) {
	w := musWriter{bs: bs}
	w.string(v.ID)
	w.time(v.StartedAt)
	w.timePtr(v.EndedAt)
	w.string(string(v.Status))
	w.string(v.Message)
	w.int(v.Seen)
	w.int(v.Created)
	w.int(v.Updated)
	return w.n
}

func (runMUS) Unmarshal(bs []byte) (v IngestionRun, n int, err error) {
	r := musReader{bs: bs}
	v.ID = r.string()
	v.StartedAt = r.time()
	v.EndedAt = r.timePtr()
	v.Status = RunStatus(r.string())
	v.Message = r.string()
	v.Seen = r.int()
	v.Created = r.int()
	v.Updated = r.int()
	return v, r.n, r.err
}

func (runMUS) Size(v IngestionRun) int {
	return ord.String.Size(v.ID) + timeSize(v.StartedAt) + timePtrSize(v.EndedAt) +
		ord.String.Size(string(v.Status)) + ord.String.Size(v.Message) +
		varint.Int.Size(v.Seen) + varint.Int.Size(v.Created) + varint.Int.Size(v.Updated)
}

func (s runMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type migrationStateMUS struct{}

func (migrationStateMUS) Marshal(v MigrationState, bs []byte) (n int) {
	w := musWriter{bs: bs}
	w.string(string(v.Phase))
	w.int(v.Dimension)
	w.int(v.PreviousDimension)
	w.string(v.Message)
	w.time(v.UpdatedAt)
	return w.n
}

func (migrationStateMUS) Unmarshal(bs []byte) (v MigrationState, n int, err error) {
	r := musReader{bs: bs}
	v.Phase = MigrationPhase(r.string())
	v.Dimension = r.int()
	v.PreviousDimension = r.int()
	v.Message = r.string()
	v.UpdatedAt = r.time()
	return v, r.n, r.err
}

func (migrationStateMUS) Size(v MigrationState) int {
	return ord.String.Size(string(v.Phase)) + varint.Int.Size(v.Dimension) +
		varint.Int.Size(v.PreviousDimension) + ord.String.Size(v.Message) + timeSize(v.UpdatedAt)
}

func (s migrationStateMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

// musWriter appends fields to a buffer sized by the matching Size method.
type musWriter struct {
	bs []byte
	n  int
}

func (w *musWriter) string(s string) { w.n += ord.String.Marshal(s, w.bs[w.n:]) }
func (w *musWriter) int(i int)       { w.n += varint.Int.Marshal(i, w.bs[w.n:]) }
func (w *musWriter) uint64(u uint64) { w.n += varint.Uint64.Marshal(u, w.bs[w.n:]) }

func (w *musWriter) time(t time.Time) {
	w.n += varint.Int64.Marshal(t.UnixMicro(), w.bs[w.n:])
}

func (w *musWriter) timePtr(t *time.Time) {
	w.n += ord.Bool.Marshal(t != nil, w.bs[w.n:])
	if t != nil {
		w.time(*t)
	}
}

func (w *musWriter) floats(v []float32) {
	w.n += varint.PositiveInt.Marshal(len(v), w.bs[w.n:])
	for _, f := range v {
		w.n += raw.Float32.Marshal(f, w.bs[w.n:])
	}
}

// musReader reads fields in order and keeps the first error.
type musReader struct {
	bs  []byte
	n   int
	err error
}

func (r *musReader) advance(n int, err error) bool {
	r.n += n
	if err != nil {
		r.err = err
		return false
	}
	return true
}

func (r *musReader) string() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.bs[r.n:])
	r.advance(n, err)
	return v
}

func (r *musReader) int() int {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(r.bs[r.n:])
	r.advance(n, err)
	return v
}

func (r *musReader) uint64() uint64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(r.bs[r.n:])
	r.advance(n, err)
	return v
}

func (r *musReader) time() time.Time {
	if r.err != nil {
		return time.Time{}
	}
	v, n, err := varint.Int64.Unmarshal(r.bs[r.n:])
	if !r.advance(n, err) {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

func (r *musReader) timePtr() *time.Time {
	if r.err != nil {
		return nil
	}
	present, n, err := ord.Bool.Unmarshal(r.bs[r.n:])
	if !r.advance(n, err) || !present {
		return nil
	}
	t := r.time()
	if r.err != nil {
		return nil
	}
	return &t
}

func (r *musReader) floats() []float32 {
	if r.err != nil {
		return nil
	}
	length, n, err := varint.PositiveInt.Unmarshal(r.bs[r.n:])
	if !r.advance(n, err) {
		return nil
	}
	if length == 0 {
		return nil
	}
	v := make([]float32, length)
	for i := range v {
		f, n, err := raw.Float32.Unmarshal(r.bs[r.n:])
		if !r.advance(n, err) {
			return nil
		}
		v[i] = f
	}
	return v
}

func timeSize(t time.Time) int {
	return varint.Int64.Size(t.UnixMicro())
}

func timePtrSize(t *time.Time) int {
	size := ord.Bool.Size(t != nil)
	if t != nil {
		size += timeSize(*t)
	}
	return size
}

func floatsSize(v []float32) int {
	size := varint.PositiveInt.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}
