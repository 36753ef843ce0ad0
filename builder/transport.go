package builder

import (
	"context"
	"encoding/json"
	"net/http"

	kitlog "github.com/go-kit/kit/log"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/Aussie-Nomad/MacForge-sub002/mobileconfig"
	"github.com/Aussie-Nomad/MacForge-sub002/profile"
)

var errBadRoute = errors.New("bad route")

// ServiceHandler returns an HTTP handler for the builder service.
func ServiceHandler(svc Service, logger kitlog.Logger) http.Handler {
	opts := []kithttp.ServerOption{
		kithttp.ServerErrorLogger(logger),
		kithttp.ServerErrorEncoder(encodeError),
	}

	saveHandler := kithttp.NewServer(
		makeSaveProfileEndpoint(svc),
		decodeSaveProfileRequest,
		encodeSaveResponse,
		opts...,
	)
	listHandler := kithttp.NewServer(
		makeListProfilesEndpoint(svc),
		decodeEmptyRequest,
		encodeResponse,
		opts...,
	)
	getHandler := kithttp.NewServer(
		makeGetProfileEndpoint(svc),
		decodeIdentifierRequest,
		encodeResponse,
		opts...,
	)
	deleteHandler := kithttp.NewServer(
		makeDeleteProfileEndpoint(svc),
		decodeIdentifierRequest,
		encodeResponse,
		opts...,
	)
	validateHandler := kithttp.NewServer(
		makeValidateProfileEndpoint(svc),
		decodeIdentifierRequest,
		encodeResponse,
		opts...,
	)
	complianceHandler := kithttp.NewServer(
		makeCheckComplianceEndpoint(svc),
		decodeIdentifierRequest,
		encodeResponse,
		opts...,
	)
	previewHandler := kithttp.NewServer(
		makePreviewProfileEndpoint(svc),
		decodeIdentifierRequest,
		encodePreviewResponse,
		opts...,
	)
	exportHandler := kithttp.NewServer(
		makeExportProfileEndpoint(svc),
		decodeIdentifierRequest,
		encodeResponse,
		opts...,
	)
	publishHandler := kithttp.NewServer(
		makePublishProfileEndpoint(svc),
		decodeIdentifierRequest,
		encodeResponse,
		opts...,
	)
	publishAllHandler := kithttp.NewServer(
		makePublishAllEndpoint(svc),
		decodePublishAllRequest,
		encodeResponse,
		opts...,
	)
	queueHandler := kithttp.NewServer(
		makeQueuePublishEndpoint(svc),
		decodeIdentifierRequest,
		encodeResponse,
		opts...,
	)

	r := mux.NewRouter()
	r.Handle("/v1/profiles", saveHandler).Methods("POST")
	r.Handle("/v1/profiles", listHandler).Methods("GET")
	r.Handle("/v1/profiles/publish", publishAllHandler).Methods("POST")
	r.Handle("/v1/profiles/{identifier}", getHandler).Methods("GET")
	r.Handle("/v1/profiles/{identifier}", deleteHandler).Methods("DELETE")
	r.Handle("/v1/profiles/{identifier}/validate", validateHandler).Methods("POST")
	r.Handle("/v1/profiles/{identifier}/compliance", complianceHandler).Methods("POST")
	r.Handle("/v1/profiles/{identifier}/preview", previewHandler).Methods("GET")
	r.Handle("/v1/profiles/{identifier}/export", exportHandler).Methods("POST")
	r.Handle("/v1/profiles/{identifier}/publish", publishHandler).Methods("POST")
	r.Handle("/v1/profiles/{identifier}/queue", queueHandler).Methods("POST")

	return r
}

func decodeEmptyRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return nil, nil
}

func decodeSaveProfileRequest(_ context.Context, r *http.Request) (interface{}, error) {
	defer r.Body.Close()
	var req saveProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req.Profile); err != nil {
		return nil, errors.Wrap(err, "decode profile body")
	}
	return req, nil
}

func decodeIdentifierRequest(_ context.Context, r *http.Request) (interface{}, error) {
	identifier, ok := mux.Vars(r)["identifier"]
	if !ok {
		return nil, errBadRoute
	}
	return identifierRequest{Identifier: identifier}, nil
}

func decodePublishAllRequest(_ context.Context, r *http.Request) (interface{}, error) {
	defer r.Body.Close()
	var req publishAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Wrap(err, "decode publish request")
	}
	return req, nil
}

type errorer interface {
	error() error
}

func encodeResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	if e, ok := response.(errorer); ok && e.error() != nil {
		encodeError(ctx, e.error(), w)
		return nil
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	return json.NewEncoder(w).Encode(response)
}

func encodeSaveResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	if e, ok := response.(errorer); ok && e.error() != nil {
		encodeError(ctx, e.error(), w)
		return nil
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusCreated)
	return json.NewEncoder(w).Encode(response)
}

func encodePreviewResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	resp := response.(previewProfileResponse)
	if resp.Err != nil {
		encodeError(ctx, resp.Err, w)
		return nil
	}
	w.Header().Set("Content-Type", "application/x-apple-aspen-config")
	_, err := w.Write(resp.Data)
	return err
}

// encode errors from business-logic
func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	body := map[string]interface{}{
		"error": err.Error(),
	}
	switch cause := errors.Cause(err).(type) {
	case *mobileconfig.InvalidProfileError:
		w.WriteHeader(http.StatusUnprocessableEntity)
		body["issues"] = cause.Issues
	default:
		switch errors.Cause(err) {
		case profile.ErrNotFound:
			w.WriteHeader(http.StatusNotFound)
		case errBadRoute:
			w.WriteHeader(http.StatusBadRequest)
		case ErrNoPublisher, ErrNoQueue:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
	json.NewEncoder(w).Encode(body)
}
