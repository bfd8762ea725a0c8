// Package tracking 평가 결과를 SQL 테이블에 기록
package tracking

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	_ "github.com/go-sql-driver/mysql" // mysql 드라이버 등록
	_ "github.com/mattn/go-sqlite3"    // sqlite3 드라이버 등록
	"go.uber.org/zap"
)

const timeLayout = "2006-01-02 15:04:05"

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config DBconn 설정
type Config struct {
	DriverName string
	ConnInfo   string

	TableName string
}

// DBconn db 연결정보
type DBconn struct {
	DriverName string
	ConnInfo   string

	TableName string

	db  *sql.DB
	log *zap.Logger
}

// Score 평가 결과 항목
type Score struct {
	Model    string
	Loss     float64
	Accuracy float64
	Params   map[string]interface{}
	CreateAt time.Time
}

func (conn *DBconn) initTable() error {
	if _, err := conn.db.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		model VARCHAR(40) NOT NULL,
		loss DOUBLE NOT NULL,
		accuracy DOUBLE NOT NULL,
		params TEXT NOT NULL,
		createAt DATETIME NOT NULL);`, conn.TableName)); err != nil {
		return err
	}

	conn.log.Info("DB table ready", zap.String("driver", conn.DriverName), zap.String("table", conn.TableName))
	return nil
}

// Insert 평가 결과 기록
func (conn *DBconn) Insert(score Score) error {
	params, err := json.Marshal(score.Params)
	if err != nil {
		return err
	}
	createAt := score.CreateAt.UTC().Format(timeLayout)

	_, err = conn.db.Exec(fmt.Sprintf(`INSERT INTO %s (
		model,
		loss,
		accuracy,
		params,
		createAt) VALUES (?, ?, ?, ?, ?);`, conn.TableName),
		score.Model, score.Loss, score.Accuracy, string(params), createAt,
	)

	return err
}

// List 기록된 평가 결과 (기록 순)
func (conn *DBconn) List() ([]Score, error) {
	rows, err := conn.db.Query(fmt.Sprintf(
		"SELECT model, loss, accuracy, params, createAt FROM %s;", conn.TableName))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []Score
	for rows.Next() {
		var (
			s        Score
			params   string
			createAt string
		)
		if err := rows.Scan(&s.Model, &s.Loss, &s.Accuracy, &params, &createAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(params), &s.Params); err != nil {
			return nil, err
		}
		if s.CreateAt, err = parseTime(createAt); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}

	return scores, rows.Err()
}

func parseTime(v string) (time.Time, error) {
	for _, layout := range []string{timeLayout, time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("Invalid createAt: %s", v)
}

// Destroy db connection 해제
func (conn *DBconn) Destroy() error {
	return conn.db.Close()
}

// New 새로운 db connection 생성
func New(log *zap.Logger, cfg Config) (*DBconn, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if !tableNameRe.MatchString(cfg.TableName) {
		return nil, fmt.Errorf("Invalid table name: %q", cfg.TableName)
	}

	db, err := sql.Open(cfg.DriverName, cfg.ConnInfo)
	if err != nil {
		return nil, err
	}

	conn := &DBconn{
		DriverName: cfg.DriverName,
		ConnInfo:   cfg.ConnInfo,
		TableName:  cfg.TableName,
		db:         db,
		log:        log,
	}

	if err := conn.initTable(); err != nil {
		db.Close()
		return nil, err
	}

	return conn, nil
}
