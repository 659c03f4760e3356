package services

import (
	"encoding/xml"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"

	"github.com/banksim/backend/internal/models"
)

// SettlementService converts confirmed SEPA transfers into pacs.008 credit
// transfer messages for the clearing side of the sandbox. Delivery is a log
// sink; the sandbox has no real settlement rail.
type SettlementService struct{}

func NewSettlementService() *SettlementService {
	return &SettlementService{}
}

// SubmitTransfer settles one confirmed transfer
func (s *SettlementService) SubmitTransfer(person *models.Person, transfer *models.SEPATransfer) error {
	doc, err := s.CreatePacs008(person, transfer)
	if err != nil {
		return err
	}
	return s.SendToSettlement(doc)
}

// SubmitBatch settles the transfers of a confirmed batch together
func (s *SettlementService) SubmitBatch(person *models.Person, transfers []models.SEPATransfer) error {
	for i := range transfers {
		if err := s.SubmitTransfer(person, &transfers[i]); err != nil {
			return err
		}
	}
	return nil
}

// CreatePacs008 creates a pacs.008 FIToFICustomerCreditTransfer message for
// an outgoing SEPA transfer
func (s *SettlementService) CreatePacs008(person *models.Person, transfer *models.SEPATransfer) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	if person.Account == nil {
		return nil, fmt.Errorf("person %s has no account", person.ID)
	}

	msgID := uuid.New().String()
	now := time.Now()
	amount := float64(transfer.Amount.Value) / 100

	endToEndID := transfer.EndToEndID
	if endToEndID == "" {
		endToEndID = transfer.ID
	}

	debtorName := person.FirstName + " " + person.LastName

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgID),
			CreDtTm: common.ISODateTime(now),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(transfer.Amount.Currency),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&now),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(transfer.ID)}[0],
					EndToEndId: common.Max35Text(endToEndID),
					TxId:       &[]common.Max35Text{common.Max35Text(transfer.ID)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(transfer.Amount.Currency),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&now),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(person.Account.BIC)}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(debtorName)}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(transfer.RecipientBIC)}[0],
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(transfer.RecipientName)}[0],
				},
			},
		},
	}

	return doc, nil
}

// SendToSettlement serializes the message and hands it to the clearing sink
func (s *SettlementService) SendToSettlement(doc interface{}) error {
	xmlData, err := s.ConvertToXML(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal settlement message: %w", err)
	}

	log.Printf("[SETTLEMENT] Sending pacs.008 message (%d bytes)", len(xmlData))
	return nil
}

// ConvertToXML renders an ISO 20022 document as an XML string
func (s *SettlementService) ConvertToXML(doc interface{}) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}
