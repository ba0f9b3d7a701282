package repository

import (
	"context"
	stderrors "errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore RowStore 的 gorm 实现，生产环境为 Postgres，测试为 SQLite
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB 暴露底层连接，仅供迁移与健康检查使用
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func (s *GormStore) FindOne(ctx context.Context, dest interface{}, conds ...Cond) error {
	err := s.where(s.db.WithContext(ctx), conds).Take(dest).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return storeErr("find_one", err)
}

func (s *GormStore) Find(ctx context.Context, dest interface{}, q Query) error {
	tx := s.where(s.db.WithContext(ctx), q.Where)
	if q.OrderBy != "" {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: q.OrderBy}, Desc: q.Desc})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	return storeErr("find", tx.Find(dest).Error)
}

func (s *GormStore) Insert(ctx context.Context, row interface{}) error {
	return storeErr("insert", s.db.WithContext(ctx).Create(row).Error)
}

func (s *GormStore) InsertIgnore(ctx context.Context, row interface{}) (bool, error) {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if result.Error != nil {
		return false, storeErr("insert_ignore", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (s *GormStore) Update(ctx context.Context, model interface{}, patch Patch, conds ...Cond) (int64, error) {
	if len(conds) == 0 {
		return 0, storeErr("update", fmt.Errorf("refusing unconditional update"))
	}

	values := make(map[string]interface{}, len(patch))
	for column, v := range patch {
		if inc, ok := v.(Incr); ok {
			values[column] = gorm.Expr("? + ?", clause.Column{Name: column}, inc.N)
			continue
		}
		values[column] = v
	}

	result := s.where(s.db.WithContext(ctx).Model(model), conds).Updates(values)
	if result.Error != nil {
		return 0, storeErr("update", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormStore) Delete(ctx context.Context, model interface{}, conds ...Cond) (int64, error) {
	if len(conds) == 0 {
		return 0, storeErr("delete", fmt.Errorf("refusing unconditional delete"))
	}

	result := s.where(s.db.WithContext(ctx), conds).Delete(model)
	if result.Error != nil {
		return 0, storeErr("delete", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx RowStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) where(tx *gorm.DB, conds []Cond) *gorm.DB {
	for _, c := range conds {
		tx = tx.Where(toExpression(c))
	}
	return tx
}

func toExpression(c Cond) clause.Expression {
	col := clause.Column{Name: c.Column}
	switch c.Op {
	case OpEq:
		return clause.Eq{Column: col, Value: c.Value}
	case OpNeq:
		return clause.Neq{Column: col, Value: c.Value}
	case OpLt:
		return clause.Lt{Column: col, Value: c.Value}
	case OpLte:
		return clause.Lte{Column: col, Value: c.Value}
	case OpGt:
		return clause.Gt{Column: col, Value: c.Value}
	case OpGte:
		return clause.Gte{Column: col, Value: c.Value}
	case OpIn:
		return clause.IN{Column: col, Values: toValues(c.Value)}
	case OpIsNull:
		return clause.Eq{Column: col, Value: nil}
	case OpNotNull:
		return clause.Neq{Column: col, Value: nil}
	case opAny:
		exprs := make([]clause.Expression, 0, len(c.Any))
		for _, sub := range c.Any {
			exprs = append(exprs, toExpression(sub))
		}
		return clause.Or(exprs...)
	default:
		panic("repository: unknown condition op " + string(c.Op))
	}
}

func toValues(v interface{}) []interface{} {
	switch vs := v.(type) {
	case []interface{}:
		return vs
	case []int64:
		out := make([]interface{}, len(vs))
		for i, x := range vs {
			out[i] = x
		}
		return out
	case []string:
		out := make([]interface{}, len(vs))
		for i, x := range vs {
			out[i] = x
		}
		return out
	default:
		return []interface{}{v}
	}
}
