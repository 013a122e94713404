package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitPath(t *testing.T) {
	t.Run("nested path", func(t *testing.T) {
		assert.Equal(t,
			[]string{"Assets", "Assets:Cash", "Assets:Cash:USD"},
			SplitPath("Assets:Cash:USD"))
	})

	t.Run("single segment", func(t *testing.T) {
		assert.Equal(t, []string{"Assets"}, SplitPath("Assets"))
	})

	t.Run("order is root to leaf", func(t *testing.T) {
		paths := SplitPath("Expenses:Food:Groceries")
		assert.Equal(t, "Expenses", paths[0])
		assert.Equal(t, "Expenses:Food:Groceries", paths[len(paths)-1])
	})
}

func TestValidateRootPath(t *testing.T) {
	t.Run("allowed roots", func(t *testing.T) {
		for _, root := range RootPaths {
			assert.NoError(t, ValidateRootPath(root+":Sub"))
		}
	})

	t.Run("unknown root", func(t *testing.T) {
		assert.ErrorIs(t, ValidateRootPath("Unknown:Sub"), ErrInvalidRootPath)
	})

	t.Run("root only", func(t *testing.T) {
		assert.NoError(t, ValidateRootPath("Assets"))
	})

	t.Run("trailing colon ignored", func(t *testing.T) {
		assert.NoError(t, ValidateRootPath("Assets:Cash:"))
	})
}

func TestNewAccountNormalize(t *testing.T) {
	t.Run("strips trailing colons", func(t *testing.T) {
		account := NewAccount{Name: "Cash", Path: "Assets:Cash:"}
		assert.NoError(t, account.Normalize())
		assert.Equal(t, "Assets:Cash", account.Path)
	})

	t.Run("rejects invalid root", func(t *testing.T) {
		account := NewAccount{Name: "Cash", Path: "Wallet:Cash"}
		assert.ErrorIs(t, account.Normalize(), ErrInvalidRootPath)
	})
}

func TestUpdateAccountNormalize(t *testing.T) {
	t.Run("nil path passes", func(t *testing.T) {
		update := UpdateAccount{}
		assert.NoError(t, update.Normalize())
	})

	t.Run("path is validated and trimmed", func(t *testing.T) {
		path := "Liabilities:Loans:"
		update := UpdateAccount{Path: &path}
		assert.NoError(t, update.Normalize())
		assert.Equal(t, "Liabilities:Loans", *update.Path)
	})

	t.Run("invalid root rejected", func(t *testing.T) {
		path := "Loans"
		update := UpdateAccount{Path: &path}
		assert.ErrorIs(t, update.Normalize(), ErrInvalidRootPath)
	})
}
