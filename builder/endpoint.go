package builder

import (
	"context"

	"github.com/go-kit/kit/endpoint"

	"github.com/Aussie-Nomad/MacForge-sub002/profile"
	"github.com/Aussie-Nomad/MacForge-sub002/validate"
)

type saveProfileRequest struct {
	profile.Profile
}

type saveProfileResponse struct {
	*profile.Profile
	Err error `json:"error,omitempty"`
}

func (r saveProfileResponse) error() error { return r.Err }

func makeSaveProfileEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(saveProfileRequest)
		saved, err := svc.SaveProfile(&req.Profile)
		if err != nil {
			return saveProfileResponse{Err: err}, nil
		}
		return saveProfileResponse{Profile: saved}, nil
	}
}

type listProfilesResponse struct {
	Profiles []profile.Profile `json:"profiles"`
	Err      error             `json:"error,omitempty"`
}

func (r listProfilesResponse) error() error { return r.Err }

func makeListProfilesEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		profiles, err := svc.Profiles()
		if err != nil {
			return listProfilesResponse{Err: err}, nil
		}
		return listProfilesResponse{Profiles: profiles}, nil
	}
}

// identifierRequest covers every operation addressed by a stored
// profile's identifier.
type identifierRequest struct {
	Identifier string
}

type getProfileResponse struct {
	*profile.Profile
	Err error `json:"error,omitempty"`
}

func (r getProfileResponse) error() error { return r.Err }

func makeGetProfileEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(identifierRequest)
		p, err := svc.ProfileByIdentifier(req.Identifier)
		if err != nil {
			return getProfileResponse{Err: err}, nil
		}
		return getProfileResponse{Profile: p}, nil
	}
}

type deleteProfileResponse struct {
	Err error `json:"error,omitempty"`
}

func (r deleteProfileResponse) error() error { return r.Err }

func makeDeleteProfileEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(identifierRequest)
		return deleteProfileResponse{Err: svc.DeleteProfile(req.Identifier)}, nil
	}
}

type issuesResponse struct {
	Issues []validate.Issue `json:"issues"`
	Err    error            `json:"error,omitempty"`
}

func (r issuesResponse) error() error { return r.Err }

func makeValidateProfileEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(identifierRequest)
		issues, err := svc.ValidateProfile(req.Identifier)
		if err != nil {
			return issuesResponse{Err: err}, nil
		}
		return issuesResponse{Issues: issues}, nil
	}
}

func makeCheckComplianceEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(identifierRequest)
		issues, err := svc.CheckCompliance(req.Identifier)
		if err != nil {
			return issuesResponse{Err: err}, nil
		}
		return issuesResponse{Issues: issues}, nil
	}
}

type previewProfileResponse struct {
	Data []byte
	Err  error
}

func (r previewProfileResponse) error() error { return r.Err }

func makePreviewProfileEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(identifierRequest)
		data, err := svc.PreviewProfile(req.Identifier)
		if err != nil {
			return previewProfileResponse{Err: err}, nil
		}
		return previewProfileResponse{Data: data}, nil
	}
}

type exportProfileResponse struct {
	Filename string `json:"filename,omitempty"`
	Err      error  `json:"error,omitempty"`
}

func (r exportProfileResponse) error() error { return r.Err }

func makeExportProfileEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(identifierRequest)
		filename, err := svc.ExportProfile(req.Identifier)
		if err != nil {
			return exportProfileResponse{Err: err}, nil
		}
		return exportProfileResponse{Filename: filename}, nil
	}
}

type publishProfileResponse struct {
	Updated  bool  `json:"updated"`
	Requests int   `json:"requests"`
	Err      error `json:"error,omitempty"`
}

func (r publishProfileResponse) error() error { return r.Err }

func makePublishProfileEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(identifierRequest)
		receipt, err := svc.PublishProfile(ctx, req.Identifier)
		if err != nil {
			return publishProfileResponse{Err: err}, nil
		}
		return publishProfileResponse{Updated: receipt.Updated, Requests: receipt.Requests}, nil
	}
}

type publishAllRequest struct {
	Identifiers []string `json:"identifiers"`
}

type publishAllResponse struct {
	Results []PublishResult `json:"results"`
	Err     error           `json:"error,omitempty"`
}

func (r publishAllResponse) error() error { return r.Err }

func makePublishAllEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(publishAllRequest)
		results, err := svc.PublishAll(ctx, req.Identifiers)
		if err != nil {
			return publishAllResponse{Err: err}, nil
		}
		return publishAllResponse{Results: results}, nil
	}
}

type queuePublishResponse struct {
	JobID string `json:"job_id,omitempty"`
	Err   error  `json:"error,omitempty"`
}

func (r queuePublishResponse) error() error { return r.Err }

func makeQueuePublishEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(identifierRequest)
		jobID, err := svc.QueuePublish(req.Identifier)
		if err != nil {
			return queuePublishResponse{Err: err}, nil
		}
		return queuePublishResponse{JobID: jobID}, nil
	}
}
