package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/eryxsegithub/TheStudioBot/internal/config"
	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

type backend struct {
	name string
	open func(t *testing.T) Store
}

func backends(t *testing.T) []backend {
	list := []backend{
		{"json", func(t *testing.T) Store {
			s, err := OpenJSON(filepath.Join(t.TempDir(), "guilds.json"))
			require.NoError(t, err)
			return s
		}},
		{"sqlite", func(t *testing.T) Store {
			s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "guilds.db"))
			require.NoError(t, err)
			return s
		}},
	}
	if dsn := os.Getenv("STUDIO_TEST_POSTGRES_DSN"); dsn != "" {
		list = append(list, backend{"postgres", func(t *testing.T) Store {
			s, err := OpenPostgres(context.Background(), dsn)
			require.NoError(t, err)
			return s
		}})
	}
	return list
}

func sampleSettings(guildID string) models.GuildSettings {
	at := time.Unix(1700000000, 0).UTC()
	spam := 4
	revoke := false

	g := models.NewGuildSettings(guildID)
	g.LogChannelID = "555"
	g.JailRoleID = "666"
	g.WhitelistIDs = []string{"1", "2"}
	g.Antinuke.SpamThreshold = &spam
	g.Antinuke.AutoRevokeDangerousPerms = &revoke
	g.Jailed["77"] = models.QuarantineRecord{
		MemberID:  "77",
		Roles:     []string{"a", "b"},
		JailedAt:  at,
		ReleaseAt: at.Add(time.Hour),
		Reason:    "raid",
	}
	g.Warns["88"] = []models.WarnRecord{{ID: 123456, ModeratorID: "9", Reason: "spam", Time: at}}
	return g
}

func TestStoreContract(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)
			defer s.Close()

			t.Run("get missing returns defaults", func(t *testing.T) {
				g, err := s.Get(ctx, "missing")
				require.NoError(t, err)
				assert.Equal(t, models.NewGuildSettings("missing"), g)
			})

			t.Run("set then get round trips", func(t *testing.T) {
				want := sampleSettings("g1")
				require.NoError(t, s.Set(ctx, want))

				got, err := s.Get(ctx, "g1")
				require.NoError(t, err)
				assert.Equal(t, want, got)

				ids, err := s.Guilds(ctx)
				require.NoError(t, err)
				assert.Contains(t, ids, "g1")
			})

			t.Run("patch merges", func(t *testing.T) {
				got, err := s.Patch(ctx, "g1", func(g *models.GuildSettings) error {
					g.LogChannelID = "999"
					g.AddWhitelist("3")
					return nil
				})
				require.NoError(t, err)
				assert.Equal(t, "999", got.LogChannelID)

				stored, err := s.Get(ctx, "g1")
				require.NoError(t, err)
				assert.Equal(t, []string{"1", "2", "3"}, stored.WhitelistIDs)
				assert.Equal(t, "666", stored.JailRoleID)
			})

			t.Run("patch error aborts", func(t *testing.T) {
				_, err := s.Patch(ctx, "g1", func(g *models.GuildSettings) error {
					g.LogChannelID = "lost"
					return fmt.Errorf("nope")
				})
				require.Error(t, err)
				stored, _ := s.Get(ctx, "g1")
				assert.Equal(t, "999", stored.LogChannelID)
			})

			t.Run("warns", func(t *testing.T) {
				at := time.Unix(1700000100, 0).UTC()
				require.NoError(t, s.AddWarn(ctx, "g2", "u", models.WarnRecord{ID: 100001, ModeratorID: "m", Reason: "a", Time: at}))
				require.NoError(t, s.AddWarn(ctx, "g2", "u", models.WarnRecord{ID: 100002, ModeratorID: "m", Reason: "b", Time: at.Add(time.Second)}))

				list, err := s.Warns(ctx, "g2", "u")
				require.NoError(t, err)
				require.Len(t, list, 2)
				assert.Equal(t, 100001, list[0].ID)

				ok, err := s.RemoveWarn(ctx, "g2", "u", 100001)
				require.NoError(t, err)
				assert.True(t, ok)
				ok, err = s.RemoveWarn(ctx, "g2", "u", 100001)
				require.NoError(t, err)
				assert.False(t, ok)

				n, err := s.ClearWarns(ctx, "g2", "u")
				require.NoError(t, err)
				assert.Equal(t, 1, n)
				list, err = s.Warns(ctx, "g2", "u")
				require.NoError(t, err)
				assert.Empty(t, list)
			})

			t.Run("audit newest first", func(t *testing.T) {
				base := time.Unix(1700000000, 0).UTC()
				for i := 0; i < 3; i++ {
					e := models.NewAuditEntry("g3", fmt.Sprint(i), models.ActionTimeout, "r")
					e.Timestamp = base.Add(time.Duration(i) * time.Second)
					e.Category = models.CategoryFlood
					require.NoError(t, s.AppendAudit(ctx, e))
				}
				list, err := s.Audit(ctx, "g3", 2)
				require.NoError(t, err)
				require.Len(t, list, 2)
				assert.Equal(t, "2", list[0].TargetID)
				assert.Equal(t, models.CategoryFlood, list[0].Category)
			})

			t.Run("concurrent patches are serialized", func(t *testing.T) {
				var wg sync.WaitGroup
				for i := 0; i < 20; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						_, err := s.Patch(ctx, "g4", func(g *models.GuildSettings) error {
							g.AddWhitelist(fmt.Sprint(i))
							return nil
						})
						assert.NoError(t, err)
					}(i)
				}
				wg.Wait()
				g, err := s.Get(ctx, "g4")
				require.NoError(t, err)
				assert.Len(t, g.WhitelistIDs, 20)
			})

			t.Run("warn added during patch survives", func(t *testing.T) {
				inPatch := make(chan struct{})
				done := make(chan error, 1)
				go func() {
					<-inPatch
					done <- s.AddWarn(ctx, "g5", "u", models.WarnRecord{ID: 200001, ModeratorID: "m", Reason: "r", Time: time.Unix(1700000200, 0).UTC()})
				}()

				_, err := s.Patch(ctx, "g5", func(g *models.GuildSettings) error {
					close(inPatch)
					time.Sleep(50 * time.Millisecond)
					g.LogChannelID = "123"
					return nil
				})
				require.NoError(t, err)
				require.NoError(t, <-done)

				list, err := s.Warns(ctx, "g5", "u")
				require.NoError(t, err)
				assert.Len(t, list, 1)
				g, err := s.Get(ctx, "g5")
				require.NoError(t, err)
				assert.Equal(t, "123", g.LogChannelID)
			})

			t.Run("patch that edits warns persists them", func(t *testing.T) {
				at := time.Unix(1700000300, 0).UTC()
				require.NoError(t, s.AddWarn(ctx, "g6", "u", models.WarnRecord{ID: 300001, ModeratorID: "m", Reason: "a", Time: at}))
				_, err := s.Patch(ctx, "g6", func(g *models.GuildSettings) error {
					g.Warns["u"] = append(g.Warns["u"], models.WarnRecord{ID: 300002, ModeratorID: "m", Reason: "b", Time: at.Add(time.Second)})
					return nil
				})
				require.NoError(t, err)

				list, err := s.Warns(ctx, "g6", "u")
				require.NoError(t, err)
				require.Len(t, list, 2)
				assert.Equal(t, 300002, list[1].ID)
			})
		})
	}
}

func TestGuildLocksReuseMutex(t *testing.T) {
	l := newGuildLocks()
	l.lock("a")()
	l.lock("a")()
	l.lock("b")()
	assert.Equal(t, 2, l.len())
}

func TestSameWarns(t *testing.T) {
	at := time.Unix(1700000000, 0).UTC()
	a := map[string][]models.WarnRecord{"u": {{ID: 1, Time: at}}}
	b := map[string][]models.WarnRecord{"u": {{ID: 1, Time: at.Local()}}}
	assert.True(t, sameWarns(a, b))
	b["u"][0].Reason = "changed"
	assert.False(t, sameWarns(a, b))
	assert.False(t, sameWarns(a, map[string][]models.WarnRecord{}))
}

func TestWriteSynced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, writeSynced(path, []byte(`{"a":1}`)))
	require.NoError(t, writeSynced(path, []byte(`{}`)))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestJSONStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guilds.json")
	s, err := OpenJSON(path)
	require.NoError(t, err)
	want := sampleSettings("g")
	require.NoError(t, s.Set(context.Background(), want))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")

	reopened, err := OpenJSON(path)
	require.NoError(t, err)
	got, err := reopened.Get(context.Background(), "g")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestJSONStoreCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guilds.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s, err := OpenJSON(path)
	require.NoError(t, err)
	ids, err := s.Guilds(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)

	matches, _ := filepath.Glob(path + ".corrupt-*")
	assert.Len(t, matches, 1)
}

func TestJSONStoreWriteFailure(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenJSON(filepath.Join(dir, "guilds.json"))
	require.NoError(t, err)

	// A directory in place of the temp file makes the write fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "guilds.json.tmp"), 0755))

	err = s.Set(context.Background(), sampleSettings("g"))
	require.ErrorIs(t, err, ErrWriteFailed)

	ids, _ := s.Guilds(context.Background())
	assert.Empty(t, ids, "failed write is rolled back")
}

func TestSQLiteCorruptRowFallsBack(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "guilds.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.ExecContext(ctx, `INSERT INTO guild_settings (guild_id, doc, updated_at) VALUES ('bad', 'garbage', 0)`)
	require.NoError(t, err)

	g, err := s.Get(ctx, "bad")
	require.NoError(t, err)
	assert.Equal(t, models.NewGuildSettings("bad"), g)
}

func TestRebind(t *testing.T) {
	d := &Database{dialect: dialectPostgres}
	assert.Equal(t, "a = $1 AND b = $2", d.rebind("a = ? AND b = ?"))
	d.dialect = dialectSQLite
	assert.Equal(t, "a = ?", d.rebind("a = ?"))
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Backend: "mongo"})
	assert.Error(t, err)
}

func TestAuditWriter(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s, err := OpenJSON(filepath.Join(t.TempDir(), "guilds.json"))
	require.NoError(t, err)

	beats := 0
	var mu sync.Mutex
	w := NewAuditWriter(s, 8)
	w.OnFlush = func() {
		mu.Lock()
		beats++
		mu.Unlock()
	}
	w.Start()
	for i := 0; i < 5; i++ {
		assert.True(t, w.Enqueue(models.NewAuditEntry("g", "t", models.ActionJail, "")))
	}
	w.Stop()

	assert.Equal(t, uint64(5), w.Written())
	list, err := s.Audit(context.Background(), "g", 0)
	require.NoError(t, err)
	assert.Len(t, list, 5)
	mu.Lock()
	assert.GreaterOrEqual(t, beats, 5)
	mu.Unlock()
}

func TestAuditWriterDropsWhenFull(t *testing.T) {
	s, err := OpenJSON(filepath.Join(t.TempDir(), "guilds.json"))
	require.NoError(t, err)

	w := NewAuditWriter(s, 1)
	assert.True(t, w.Enqueue(models.NewAuditEntry("g", "t", models.ActionJail, "")))
	assert.False(t, w.Enqueue(models.NewAuditEntry("g", "t", models.ActionJail, "")))
	assert.Equal(t, uint64(1), w.Dropped())
}

func TestWarmProfiles(t *testing.T) {
	ctx := context.Background()
	s, err := OpenJSON(filepath.Join(t.TempDir(), "guilds.json"))
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, sampleSettings("a")))
	require.NoError(t, s.Set(ctx, sampleSettings("b")))

	profiles := config.NewProfileStore()
	n, err := WarmProfiles(ctx, s, profiles)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, profiles.IsWhitelisted("a", "1"))
}
