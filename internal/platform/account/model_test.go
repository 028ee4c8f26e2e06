package account_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrobank/ferro/internal/platform/account"
)

// =============================================================================
// Enum Tests
// =============================================================================

func TestType_IsValid(t *testing.T) {
	validTypes := []account.Type{
		account.TypeChecking,
		account.TypeSavings,
		account.TypeBusiness,
		account.TypeInvestment,
		account.TypeTreasury,
		account.TypePrimary,
	}

	for _, at := range validTypes {
		t.Run(string(at), func(t *testing.T) {
			assert.True(t, at.IsValid(), "expected %s to be valid", at)
		})
	}

	assert.False(t, account.Type("escrow").IsValid())
}

func TestStatus_IsValid(t *testing.T) {
	for _, st := range []account.Status{account.StatusActive, account.StatusFrozen, account.StatusClosed} {
		t.Run(string(st), func(t *testing.T) {
			assert.True(t, st.IsValid())
		})
	}
	assert.False(t, account.Status("dormant").IsValid())
}

// =============================================================================
// Constructor Tests
// =============================================================================

func TestNewPrimary(t *testing.T) {
	now := time.Now().UTC()
	acc := account.NewPrimary(42, now)

	require.NoError(t, acc.Validate())
	assert.Equal(t, int64(42), acc.OwnerID)
	assert.Equal(t, account.TypePrimary, acc.AccountType)
	assert.Equal(t, account.StatusActive, acc.Status)
	assert.Equal(t, "USD", acc.Currency)
	assert.True(t, acc.Balance.IsZero())
	assert.False(t, acc.IsAdminAccount)
	assert.Contains(t, acc.AccountNumber, "ACC42_")
	assert.True(t, acc.IsActive())
	assert.True(t, acc.OwnedBy(42))
	assert.False(t, acc.OwnedBy(7))
}

func TestNewTreasury(t *testing.T) {
	acc := account.NewTreasury(1)

	require.NoError(t, acc.Validate())
	assert.Equal(t, account.ReserveAccountNumber, acc.AccountNumber)
	assert.Equal(t, account.TypeTreasury, acc.AccountType)
	assert.True(t, acc.IsAdminAccount)
	assert.True(t, acc.Balance.IsZero())
}

// =============================================================================
// Validation Tests
// =============================================================================

func TestAccount_Validate(t *testing.T) {
	valid := func() *account.Account {
		return account.NewPrimary(1, time.Now().UTC())
	}

	t.Run("missing owner", func(t *testing.T) {
		acc := valid()
		acc.OwnerID = 0
		assert.ErrorIs(t, acc.Validate(), account.ErrMissingOwner)
	})

	t.Run("missing account number", func(t *testing.T) {
		acc := valid()
		acc.AccountNumber = ""
		assert.ErrorIs(t, acc.Validate(), account.ErrMissingAccountNumber)
	})

	t.Run("unknown type", func(t *testing.T) {
		acc := valid()
		acc.AccountType = account.Type("escrow")
		assert.ErrorIs(t, acc.Validate(), account.ErrInvalidAccountType)
	})

	t.Run("unknown status", func(t *testing.T) {
		acc := valid()
		acc.Status = account.Status("dormant")
		assert.ErrorIs(t, acc.Validate(), account.ErrInvalidStatus)
	})

	t.Run("admin flag outside the treasury", func(t *testing.T) {
		acc := valid()
		acc.IsAdminAccount = true
		assert.ErrorIs(t, acc.Validate(), account.ErrAdminFlagOnNonTreasury)
	})
}

func TestAccount_IsActive(t *testing.T) {
	acc := account.NewPrimary(1, time.Now().UTC())
	assert.True(t, acc.IsActive())

	acc.Status = account.StatusFrozen
	assert.False(t, acc.IsActive())

	acc.Status = account.StatusClosed
	assert.False(t, acc.IsActive())
}
