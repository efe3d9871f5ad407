package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	payouterrors "paymaster/contexts/settlement/payout-service/domain/errors"
	payouthttp "paymaster/contexts/settlement/payout-service/transport/http"
)

func (s *Server) handleCreateDistribution(w http.ResponseWriter, r *http.Request) {
	var req payouthttp.CreateDistributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePayoutError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.payout.Handler.CreateDistributionHandler(r.Context(), req)
	if err != nil {
		writePayoutDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetDistribution(w http.ResponseWriter, r *http.Request) {
	distributionID := r.PathValue("distribution_id")
	resp, err := s.payout.Handler.GetDistributionHandler(r.Context(), distributionID)
	if err != nil {
		writePayoutDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExecuteDistribution(w http.ResponseWriter, r *http.Request) {
	distributionID := r.PathValue("distribution_id")
	resp, err := s.payout.Handler.ExecuteHandler(r.Context(), distributionID)
	if err != nil {
		writePayoutDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRetryDistribution(w http.ResponseWriter, r *http.Request) {
	distributionID := r.PathValue("distribution_id")
	resp, err := s.payout.Handler.RetryHandler(r.Context(), distributionID)
	if err != nil {
		writePayoutDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	distributionID := r.PathValue("distribution_id")
	resp, err := s.payout.Handler.ListBatchesHandler(r.Context(), distributionID)
	if err != nil {
		writePayoutDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListHolders(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("batch_id")
	resp, err := s.payout.Handler.ListHoldersHandler(r.Context(), batchID)
	if err != nil {
		writePayoutDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writePayoutDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payouterrors.ErrDistributionNotFound):
		writePayoutError(w, http.StatusNotFound, "distribution_not_found", err.Error())
	case errors.Is(err, payouterrors.ErrBatchPayoutNotFound):
		writePayoutError(w, http.StatusNotFound, "batch_payout_not_found", err.Error())
	case errors.Is(err, payouterrors.ErrHolderNotFound):
		writePayoutError(w, http.StatusNotFound, "holder_not_found", err.Error())
	case errors.Is(err, payouterrors.ErrDistributionAlreadyExists):
		writePayoutError(w, http.StatusConflict, "distribution_already_exists", err.Error())
	case errors.Is(err, payouterrors.ErrDistributionNotInStatus):
		writePayoutError(w, http.StatusConflict, "distribution_not_in_status", err.Error())
	case errors.Is(err, payouterrors.ErrBatchesAlreadyExist):
		writePayoutError(w, http.StatusConflict, "batches_already_exist", err.Error())
	case errors.Is(err, payouterrors.ErrInvalidDistributionInput):
		writePayoutError(w, http.StatusBadRequest, "invalid_distribution_input", err.Error())
	case errors.Is(err, payouterrors.ErrSettlementResultMismatch):
		writePayoutError(w, http.StatusBadGateway, "settlement_result_mismatch", err.Error())
	default:
		writePayoutError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writePayoutError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, payouthttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
