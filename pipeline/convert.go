package pipeline

import "github.com/forestrie/go-dwn/records"

func recordsQueryRequest(req Request) records.QueryRequest {
	role := req.ProtocolRole
	if req.Message != nil && req.Message.Authorization != nil {
		role = req.Message.Authorization.Payload.ProtocolRole
	}
	return records.QueryRequest{
		Filters:      req.Filters,
		Sort:         req.Sort,
		Cursor:       req.Cursor,
		Limit:        req.Limit,
		ProtocolRole: role,
	}
}
