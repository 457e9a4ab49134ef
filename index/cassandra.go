package index

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/gocql/gocql"
	"github.com/sirupsen/logrus"

	cfg "github.com/maastricht-university/meeting-intelligence/config"
	"github.com/maastricht-university/meeting-intelligence/transcript"
)

// batchSize bounds the rows per logged batch. Batches are atomic on their
// own; a failure part way through leaves earlier batches holding new rows
// next to the previous run's later rows.
const batchSize = 50

var reTable = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Cassandra stores one row per utterance, partitioned by meeting id.
type Cassandra struct {
	session *gocql.Session
	table   string
	emb     Embedder
	model   string
	log     *logrus.Entry
}

// ConnectCassandra opens a session on the configured keyspace and creates
// the embeddings table when it does not exist yet.
func ConnectCassandra(ctx context.Context, c cfg.Cassandra, emb Embedder, model string) (*Cassandra, error) {
	if !reTable.MatchString(c.Table) {
		return nil, fmt.Errorf("invalid cassandra table name %q", c.Table)
	}
	cluster := gocql.NewCluster(c.Hosts...)
	cluster.Keyspace = c.Keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Cassandra: %w", err)
	}
	idx := &Cassandra{
		session: session,
		table:   c.Table,
		emb:     emb,
		model:   model,
		log:     logrus.WithField("component", "index.cassandra"),
	}
	if err := idx.ensureSchema(ctx); err != nil {
		session.Close()
		return nil, err
	}
	return idx, nil
}

func (c *Cassandra) Close() { c.session.Close() }

func (c *Cassandra) ensureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			meeting_id text,
			utterance_id int,
			speaker text,
			start_sec double,
			end_sec double,
			text text,
			embedding list<float>,
			model text,
			created_at timestamp,
			PRIMARY KEY (meeting_id, utterance_id)
		)`, c.table)
	if err := c.session.Query(stmt).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("error creating table %s: %w", c.table, err)
	}
	return nil
}

// Upsert overwrites rows by utterance id and only then prunes rows beyond the
// new last id, so a failed batch leaves every row readable.
func (c *Cassandra) Upsert(ctx context.Context, meetingID string, utts []transcript.Utterance) error {
	entries, err := embedAll(ctx, c.emb, utts)
	if err != nil {
		return err
	}
	insert, prune := c.statements()
	now := time.Now()
	for lo := 0; lo < len(entries); lo += batchSize {
		hi := min(lo+batchSize, len(entries))
		b := c.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
		for _, e := range entries[lo:hi] {
			u := e.Utterance
			b.Query(insert, meetingID, u.ID, u.Speaker, u.Start, u.End, u.Text, e.Vector, c.model, now)
		}
		if err := c.session.ExecuteBatch(b); err != nil {
			return fmt.Errorf("error inserting index %s rows %d-%d: %w", meetingID, lo, hi-1, err)
		}
	}
	if err := c.session.Query(prune, meetingID, lastID(entries)).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("error pruning index %s: %w", meetingID, err)
	}
	c.log.WithFields(logrus.Fields{"meeting_id": meetingID, "entries": len(entries)}).Info("index written")
	return nil
}

func (c *Cassandra) Delete(ctx context.Context, meetingID string) error {
	del := fmt.Sprintf(`DELETE FROM %s WHERE meeting_id = ?`, c.table)
	if err := c.session.Query(del, meetingID).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("error deleting index %s: %w", meetingID, err)
	}
	return nil
}

func (c *Cassandra) statements() (insert, prune string) {
	insert = fmt.Sprintf(`
		INSERT INTO %s (
			meeting_id, utterance_id, speaker, start_sec, end_sec, text, embedding, model, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, c.table)
	prune = fmt.Sprintf(`DELETE FROM %s WHERE meeting_id = ? AND utterance_id > ?`, c.table)
	return insert, prune
}

// lastID is the highest utterance id in entries, 0 when there are none.
func lastID(entries []entry) int {
	n := 0
	for _, e := range entries {
		if e.Utterance.ID > n {
			n = e.Utterance.ID
		}
	}
	return n
}

func (c *Cassandra) Query(ctx context.Context, meetingID, text string, topK int, speaker string) ([]transcript.SearchResult, error) {
	entries, _, err := c.load(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	q, err := embedQuery(ctx, c.emb, text)
	if err != nil {
		return nil, err
	}
	return rank(entries, q, topK, speaker), nil
}

func (c *Cassandra) Stats(ctx context.Context, meetingID string) (Stats, error) {
	entries, model, err := c.load(ctx, meetingID)
	if err != nil {
		return Stats{}, err
	}
	return Stats{MeetingID: meetingID, Entries: len(entries), Dimensions: dimensions(entries), Model: model}, nil
}

// load returns the meeting's rows in clustering order, which is utterance
// order.
func (c *Cassandra) load(ctx context.Context, meetingID string) ([]entry, string, error) {
	query := fmt.Sprintf(`
		SELECT utterance_id, speaker, start_sec, end_sec, text, embedding, model
		FROM %s
		WHERE meeting_id = ?`, c.table)
	iter := c.session.Query(query, meetingID).WithContext(ctx).Iter()

	var (
		entries []entry
		model   string
		e       entry
	)
	for iter.Scan(&e.Utterance.ID, &e.Utterance.Speaker, &e.Utterance.Start, &e.Utterance.End,
		&e.Utterance.Text, &e.Vector, &model) {
		entries = append(entries, e)
		e = entry{}
	}
	if err := iter.Close(); err != nil {
		return nil, "", fmt.Errorf("error fetching index %s: %w", meetingID, err)
	}
	if len(entries) == 0 {
		return nil, "", fmt.Errorf("meeting %s: %w", meetingID, ErrNoIndex)
	}
	return entries, model, nil
}
