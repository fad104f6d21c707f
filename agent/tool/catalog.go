package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/sivanlv/pharmassist/agent/contract"
	"github.com/sivanlv/pharmassist/pharmacy"
)

const (
	ToolGetMedicationByName            = "get_medication_by_name"
	ToolGetMedicationByID              = "get_medication_by_id"
	ToolCheckInventory                 = "check_inventory"
	ToolCheckPrescriptionRequirement   = "check_prescription_requirement"
	ToolCheckAllergyIngredients        = "check_allergy_concerns_and_ingredients"
	ToolReserveMedication              = "reserve_medication"
	ToolCancelReservation              = "cancel_reservation"
	ToolCancelReservationByID          = "cancel_reservation_by_reservation_id"
	ToolFindActivePrescriptionsForUser = "find_active_prescriptions_for_user"
	ToolFindReservationsForUser        = "find_reservations_for_user"
	ToolSubmitCustomerFeedback         = "submit_customer_feedback"
)

type Executor func(ctx context.Context, tool string, args map[string]any) contractx.ToolResult

// Build returns the full tool catalog declared to the reasoning engine plus
// the executor dispatching into the reservation/inventory engine.
func Build(svc *pharmacy.Service) ([]*schema.ToolInfo, Executor) {
	return Infos(), NewExecutor(svc)
}

func Infos() []*schema.ToolInfo {
	phoneParam := &schema.ParameterInfo{
		Type:     schema.String,
		Desc:     "Last 4 digits of the customer's phone number, pattern ^[0-9]{4}$.",
		Required: true,
	}
	storeParam := &schema.ParameterInfo{
		Type: schema.String,
		Desc: "Store id. Default: " + pharmacy.DefaultStoreID,
	}

	return []*schema.ToolInfo{
		{
			Name: ToolGetMedicationByName,
			Desc: "Find a medication by brand or generic name.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"name": {Type: schema.String, Desc: "Brand or generic name, e.g. 'Advil' or 'Ibuprofen'.", Required: true},
			}),
		},
		{
			Name: ToolGetMedicationByID,
			Desc: "Fetch a medication record by its exact medication_id.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"medication_id": {Type: schema.String, Required: true},
			}),
		},
		{
			Name: ToolCheckInventory,
			Desc: "Check store inventory for a medication.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"medication_id": {Type: schema.String, Required: true},
				"store_id":      storeParam,
			}),
		},
		{
			Name: ToolCheckPrescriptionRequirement,
			Desc: "Return whether a medication requires a prescription.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"medication_id": {Type: schema.String, Required: true},
			}),
		},
		{
			Name: ToolCheckAllergyIngredients,
			Desc: "List active ingredients and optionally flag allergy matches for a given user_id.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"medication_id": {Type: schema.String, Required: true},
				"user_id":       {Type: schema.String, Desc: "Optional user id for allergy cross-reference."},
			}),
		},
		{
			Name: ToolReserveMedication,
			Desc: "Reserve a quantity of a medication at a store for the customer identified by phone_last4.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"medication_id": {Type: schema.String, Required: true},
				"quantity":      {Type: schema.Integer, Desc: "Positive integer quantity to reserve.", Required: true},
				"phone_last4":   phoneParam,
				"store_id":      storeParam,
			}),
		},
		{
			Name: ToolCancelReservation,
			Desc: "Cancel the customer's reservation for a medication at a store.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"medication_id": {Type: schema.String, Required: true},
				"phone_last4":   phoneParam,
				"store_id":      storeParam,
			}),
		},
		{
			Name: ToolCancelReservationByID,
			Desc: "Cancel a reservation by its reservation_id.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"reservation_id": {Type: schema.String, Required: true},
				"phone_last4":    phoneParam,
			}),
		},
		{
			Name: ToolFindActivePrescriptionsForUser,
			Desc: "List the customer's active prescriptions with medication details.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"phone_last4": phoneParam,
			}),
		},
		{
			Name: ToolFindReservationsForUser,
			Desc: "List the customer's reservations with medication details.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"phone_last4": phoneParam,
			}),
		},
		{
			Name: ToolSubmitCustomerFeedback,
			Desc: "Record customer feedback.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"rating":  {Type: schema.Integer, Desc: "Rating from 1 to 5.", Required: true},
				"message": {Type: schema.String, Required: true},
				"user_id": {Type: schema.String, Desc: "Optional user id."},
			}),
		},
	}
}

// NewExecutor dispatches tool invocations into the engine. Every failure
// mode becomes result data: unknown names, malformed arguments, domain
// rejections, and infrastructure faults never abort the turn.
func NewExecutor(svc *pharmacy.Service) Executor {
	return func(ctx context.Context, tool string, args map[string]any) contractx.ToolResult {
		result := dispatch(ctx, svc, tool, args)
		if fault, ok := result.(*pharmacy.Fault); ok {
			log.Debug().Str("tool", tool).Str("code", string(fault.Code)).Msg("tool rejected")
		}
		return contractx.ToolResult{Tool: tool, Result: result}
	}
}

func dispatch(ctx context.Context, svc *pharmacy.Service, tool string, args map[string]any) any {
	out, err := invoke(ctx, svc, tool, args)
	if err == nil {
		return out
	}
	var fault *pharmacy.Fault
	if errors.As(err, &fault) {
		return fault
	}
	log.Error().Err(err).Str("tool", tool).Msg("tool execution failed")
	return pharmacy.NewFault(pharmacy.CodeToolError, err.Error())
}

func invoke(ctx context.Context, svc *pharmacy.Service, tool string, args map[string]any) (any, error) {
	switch tool {
	case ToolGetMedicationByName:
		in, err := decodeArgs[lookupByNameArgs](args)
		if err != nil {
			return nil, err
		}
		return svc.LookupMedicationByName(ctx, in.Name)

	case ToolGetMedicationByID:
		in, err := decodeArgs[medicationArgs](args)
		if err != nil {
			return nil, err
		}
		return svc.LookupMedicationByID(ctx, in.MedicationID)

	case ToolCheckInventory:
		in, err := decodeArgs[inventoryArgs](args)
		if err != nil {
			return nil, err
		}
		return svc.CheckInventory(ctx, in.MedicationID, in.storeOrDefault())

	case ToolCheckPrescriptionRequirement:
		in, err := decodeArgs[medicationArgs](args)
		if err != nil {
			return nil, err
		}
		return svc.CheckPrescriptionRequirement(ctx, in.MedicationID)

	case ToolCheckAllergyIngredients:
		in, err := decodeArgs[allergyArgs](args)
		if err != nil {
			return nil, err
		}
		return svc.AllergyCheck(ctx, in.MedicationID, in.UserID)

	case ToolReserveMedication:
		in, err := decodeArgs[reserveArgs](args)
		if err != nil {
			return nil, err
		}
		return svc.Reserve(ctx, in.MedicationID, in.Quantity, in.PhoneLast4, in.storeOrDefault())

	case ToolCancelReservation:
		in, err := decodeArgs[cancelArgs](args)
		if err != nil {
			return nil, err
		}
		return svc.CancelByMedication(ctx, in.MedicationID, in.PhoneLast4, in.storeOrDefault())

	case ToolCancelReservationByID:
		in, err := decodeArgs[cancelByIDArgs](args)
		if err != nil {
			return nil, err
		}
		return svc.CancelByReservationID(ctx, in.ReservationID, in.PhoneLast4)

	case ToolFindActivePrescriptionsForUser:
		in, err := decodeArgs[userArgs](args)
		if err != nil {
			return nil, err
		}
		return svc.ActivePrescriptions(ctx, in.PhoneLast4)

	case ToolFindReservationsForUser:
		in, err := decodeArgs[userArgs](args)
		if err != nil {
			return nil, err
		}
		return svc.Reservations(ctx, in.PhoneLast4)

	case ToolSubmitCustomerFeedback:
		in, err := decodeArgs[feedbackArgs](args)
		if err != nil {
			return nil, err
		}
		return svc.SubmitFeedback(ctx, in.Rating, in.Message, in.UserID)

	default:
		return nil, pharmacy.NewFault(pharmacy.CodeUnknownTool, fmt.Sprintf("Tool not implemented: %s", tool))
	}
}
