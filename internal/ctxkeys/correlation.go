// Forge is a parametric 3D-model build service.
// Copyright (C) 2025  Matthew Burns
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package ctxkeys

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

// CorrelationID is the context key under which a request's correlation ID is
// stored.
const CorrelationID contextKey = "correlation_id"

// GetCorrelationID returns the correlation ID string from context if present, else "".
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(CorrelationID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithCorrelationID returns a child context with the provided correlation ID stored.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, CorrelationID, id)
}

// EnsureCorrelationID returns a context that contains a correlation ID and the
// value itself. If absent on the input context, a new v4 UUID is generated.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := GetCorrelationID(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithCorrelationID(ctx, id), id
}
