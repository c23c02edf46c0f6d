package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"ayursutra/pkg/domain"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const migrateLockID int64 = 41730301

// GormStore implements Store using GORM over Postgres or SQLite.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB named by dsn and runs auto-migrations.
// postgres:// and key=value DSNs select Postgres; sqlite:// or *.db select SQLite.
func NewGormStore(dsn string) (*GormStore, error) {
	dialector, isPostgres, err := dialectorFor(dsn)
	if err != nil {
		return nil, err
	}
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gormLog,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if !isPostgres {
		// SQLite allows a single writer; one connection avoids "database is locked".
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql db: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	migrate := func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&PatientModel{}, &ChatMessageModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	if isPostgres {
		err = withMigrationLock(db, migrate)
	} else {
		err = migrate(db)
	}
	if err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func dialectorFor(dsn string) (gorm.Dialector, bool, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return nil, false, errors.New("database URL required")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return postgres.Open(dsn), true, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite://")), false, nil
	case strings.HasSuffix(dsn, ".db"):
		return sqlite.Open(dsn), false, nil
	default:
		return nil, false, fmt.Errorf("unsupported database URL %q", dsn)
	}
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// InsertPatient stores a new patient, assigning an id when none is set.
func (s *GormStore) InsertPatient(ctx context.Context, p domain.Patient) (domain.Patient, error) {
	if p.ID == "" {
		p.ID = NewID()
	}
	model := patientToModel(p)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Patient{}, unavailable("insert patient", err)
	}
	return patientFromModel(model), nil
}

// GetPatient returns a patient by ID.
func (s *GormStore) GetPatient(ctx context.Context, id string) (domain.Patient, bool, error) {
	var model PatientModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Patient{}, false, nil
		}
		return domain.Patient{}, false, unavailable("get patient", err)
	}
	return patientFromModel(model), true, nil
}

// ListPatients returns patients matching q ordered by created_at.
func (s *GormStore) ListPatients(ctx context.Context, q PatientQuery) ([]domain.Patient, error) {
	var models []PatientModel
	tx := applyPatientFilter(s.db.WithContext(ctx).Model(&PatientModel{}), q.Filter).
		Order(clause.OrderByColumn{
			Column: clause.Column{Name: "created_at"},
			Desc:   q.Sort == CreatedDesc,
		})
	if err := tx.Find(&models).Error; err != nil {
		return nil, unavailable("list patients", err)
	}
	res := make([]domain.Patient, 0, len(models))
	for _, m := range models {
		res = append(res, patientFromModel(m))
	}
	return res, nil
}

// UpdatePatient rewrites the mutable fields of a patient and returns the stored row.
func (s *GormStore) UpdatePatient(ctx context.Context, id string, changes domain.PatientChanges) (domain.Patient, bool, error) {
	var (
		model PatientModel
		found bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&PatientModel{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"name":      changes.Name,
				"age":       changes.Age,
				"treatment": changes.Treatment,
				"status":    changes.Status,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return domain.Patient{}, false, unavailable("update patient", err)
	}
	if !found {
		return domain.Patient{}, false, nil
	}
	return patientFromModel(model), true, nil
}

// DeletePatient removes a patient; it reports whether a row existed.
func (s *GormStore) DeletePatient(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&PatientModel{}, "id = ?", id)
	if res.Error != nil {
		return false, unavailable("delete patient", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CountPatients returns the number of patients matching f.
func (s *GormStore) CountPatients(ctx context.Context, f PatientFilter) (int, error) {
	var count int64
	if err := applyPatientFilter(s.db.WithContext(ctx).Model(&PatientModel{}), f).Count(&count).Error; err != nil {
		return 0, unavailable("count patients", err)
	}
	return int(count), nil
}

// AppendChatMessage records a chat message.
func (s *GormStore) AppendChatMessage(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	if msg.ID == "" {
		msg.ID = NewID()
	}
	model := chatMessageToModel(msg)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.ChatMessage{}, unavailable("append chat message", err)
	}
	return chatMessageFromModel(model), nil
}

// ListChatMessages returns the whole chat log, oldest first.
func (s *GormStore) ListChatMessages(ctx context.Context) ([]domain.ChatMessage, error) {
	var models []ChatMessageModel
	if err := s.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}}).
		Find(&models).Error; err != nil {
		return nil, unavailable("list chat messages", err)
	}
	msgs := make([]domain.ChatMessage, 0, len(models))
	for _, m := range models {
		msgs = append(msgs, chatMessageFromModel(m))
	}
	return msgs, nil
}

// Ping checks the database connection.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return unavailable("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Column names are quoted through clause builders; date and timestamp are SQL keywords.
func applyPatientFilter(tx *gorm.DB, f PatientFilter) *gorm.DB {
	if !f.DateFrom.IsZero() {
		tx = tx.Where(clause.Gte{Column: clause.Column{Name: "date"}, Value: f.DateFrom.UTC()})
	}
	if f.Status != "" {
		tx = tx.Where(clause.Eq{Column: clause.Column{Name: "status"}, Value: f.Status})
	}
	if !f.CreatedFrom.IsZero() {
		tx = tx.Where(clause.Gte{Column: clause.Column{Name: "created_at"}, Value: f.CreatedFrom.UTC()})
	}
	return tx
}

func patientToModel(p domain.Patient) PatientModel {
	return PatientModel{
		ID:        p.ID,
		Name:      p.Name,
		Age:       p.Age,
		Date:      p.Date.UTC(),
		Treatment: p.Treatment,
		Status:    p.Status,
		CreatedAt: p.CreatedAt.UTC(),
	}
}

func patientFromModel(m PatientModel) domain.Patient {
	return domain.Patient{
		ID:        m.ID,
		Name:      m.Name,
		Age:       m.Age,
		Date:      m.Date.UTC(),
		Treatment: m.Treatment,
		Status:    m.Status,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func chatMessageToModel(msg domain.ChatMessage) ChatMessageModel {
	return ChatMessageModel{
		ID:        msg.ID,
		Message:   msg.Message,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp.UTC(),
	}
}

func chatMessageFromModel(m ChatMessageModel) domain.ChatMessage {
	return domain.ChatMessage{
		ID:        m.ID,
		Message:   m.Message,
		Sender:    m.Sender,
		Timestamp: m.Timestamp.UTC(),
	}
}
