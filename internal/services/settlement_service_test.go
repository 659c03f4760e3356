package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banksim/backend/internal/models"
)

func settlementTestPerson() *models.Person {
	return &models.Person{
		ID:        "person-1",
		FirstName: "Max",
		LastName:  "Mustermann",
		Account: &models.Account{
			ID:       "account-1",
			IBAN:     "DE89370400440532013000",
			BIC:      "SOBKDEBBXXX",
			Currency: "EUR",
		},
	}
}

func TestSettlementService_CreatePacs008(t *testing.T) {
	service := NewSettlementService()

	t.Run("successful message creation", func(t *testing.T) {
		transfer := &models.SEPATransfer{
			ID:            "transfer-1",
			Amount:        models.NewAmount(12550, "EUR"),
			RecipientName: "Jane Doe",
			RecipientIBAN: "FR1420041010050500013M02606",
			RecipientBIC:  "AGRIFRPPXXX",
			EndToEndID:    "E2E-42",
			Status:        models.TransferStatusBooked,
		}

		doc, err := service.CreatePacs008(settlementTestPerson(), transfer)
		require.NoError(t, err)

		assert.Equal(t, "1", string(doc.GrpHdr.NbOfTxs))
		require.Len(t, doc.CdtTrfTxInf, 1)
		tx := doc.CdtTrfTxInf[0]
		assert.Equal(t, "E2E-42", string(tx.PmtId.EndToEndId))
		assert.Equal(t, 125.50, tx.IntrBkSttlmAmt.Value)
		assert.Equal(t, "EUR", string(tx.IntrBkSttlmAmt.Ccy))
		assert.Equal(t, "Max Mustermann", string(*tx.Dbtr.Nm))
		assert.Equal(t, "Jane Doe", string(*tx.Cdtr.Nm))
	})

	t.Run("transfer id backfills the end-to-end id", func(t *testing.T) {
		transfer := &models.SEPATransfer{
			ID:     "transfer-2",
			Amount: models.NewAmount(100, "EUR"),
		}

		doc, err := service.CreatePacs008(settlementTestPerson(), transfer)
		require.NoError(t, err)
		assert.Equal(t, "transfer-2", string(doc.CdtTrfTxInf[0].PmtId.EndToEndId))
	})

	t.Run("person without account", func(t *testing.T) {
		_, err := service.CreatePacs008(&models.Person{ID: "person-2"}, &models.SEPATransfer{})
		assert.Error(t, err)
	})
}

func TestSettlementService_ConvertToXML(t *testing.T) {
	service := NewSettlementService()

	transfer := &models.SEPATransfer{
		ID:            "transfer-1",
		Amount:        models.NewAmount(5000, "EUR"),
		RecipientName: "Jane Doe",
	}
	doc, err := service.CreatePacs008(settlementTestPerson(), transfer)
	require.NoError(t, err)

	xmlStr, err := service.ConvertToXML(doc)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(xmlStr, "<?xml"))
	assert.Contains(t, xmlStr, "Jane Doe")
}

func TestSettlementService_SubmitBatch(t *testing.T) {
	service := NewSettlementService()

	transfers := []models.SEPATransfer{
		{ID: "t1", Amount: models.NewAmount(1000, "EUR")},
		{ID: "t2", Amount: models.NewAmount(2000, "EUR")},
	}
	assert.NoError(t, service.SubmitBatch(settlementTestPerson(), transfers))
}
