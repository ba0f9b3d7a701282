package repository

import (
	"context"
	stderrors "errors"
	"fmt"

	"FitStreak/pkg/errors"
)

// ErrNotFound FindOne 未命中
var ErrNotFound = stderrors.New("row not found")

// Op 条件运算符
type Op string

const (
	OpEq      Op = "="
	OpNeq     Op = "<>"
	OpLt      Op = "<"
	OpLte     Op = "<="
	OpGt      Op = ">"
	OpGte     Op = ">="
	OpIn      Op = "in"
	OpIsNull  Op = "is_null"
	OpNotNull Op = "not_null"
	opAny     Op = "any"
)

// Cond 与存储引擎无关的过滤条件，列名只能来自代码常量
type Cond struct {
	Column string
	Op     Op
	Value  interface{}
	Any    []Cond
}

func Eq(column string, v interface{}) Cond  { return Cond{Column: column, Op: OpEq, Value: v} }
func Neq(column string, v interface{}) Cond { return Cond{Column: column, Op: OpNeq, Value: v} }
func Lt(column string, v interface{}) Cond  { return Cond{Column: column, Op: OpLt, Value: v} }
func Lte(column string, v interface{}) Cond { return Cond{Column: column, Op: OpLte, Value: v} }
func Gt(column string, v interface{}) Cond  { return Cond{Column: column, Op: OpGt, Value: v} }
func Gte(column string, v interface{}) Cond { return Cond{Column: column, Op: OpGte, Value: v} }
func In(column string, v interface{}) Cond  { return Cond{Column: column, Op: OpIn, Value: v} }
func IsNull(column string) Cond             { return Cond{Column: column, Op: OpIsNull} }
func NotNull(column string) Cond            { return Cond{Column: column, Op: OpNotNull} }

// AnyOf 任一条件成立
func AnyOf(conds ...Cond) Cond { return Cond{Op: opAny, Any: conds} }

// Query Find 的查询参数
type Query struct {
	Where   []Cond
	OrderBy string
	Desc    bool
	Limit   int
}

// Incr 原子自增，Patch 中使用
type Incr struct {
	N int64
}

// Patch 列名 -> 新值
type Patch map[string]interface{}

// RowStore 行存储，只要求唯一约束与条件更新
type RowStore interface {
	// FindOne 未命中返回 ErrNotFound
	FindOne(ctx context.Context, dest interface{}, conds ...Cond) error
	Find(ctx context.Context, dest interface{}, q Query) error
	Insert(ctx context.Context, row interface{}) error
	// InsertIgnore 违反唯一约束时返回 created=false 且不报错
	InsertIgnore(ctx context.Context, row interface{}) (created bool, err error)
	// Update 返回实际影响的行数，条件更新以此判断是否生效
	Update(ctx context.Context, model interface{}, patch Patch, conds ...Cond) (int64, error)
	// Delete 软删除
	Delete(ctx context.Context, model interface{}, conds ...Cond) (int64, error)
	Transaction(ctx context.Context, fn func(tx RowStore) error) error
}

// StoreError 存储层错误，同时可匹配 StoreUnavailable 与底层错误
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{errors.StoreUnavailable, e.Err}
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
