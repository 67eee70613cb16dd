package status

import (
	"context"
)

// fills signed URLs for the view's assets. an unavailable result URL
// disables downloading; other missing URLs are left empty for placeholders.
func Resolve(ctx context.Context, v View, resolver URLResolver) View {
	v.Assets = Assets{
		Persona: resolveRef(ctx, v.Assets.Persona, resolver),
		Garment: resolveRef(ctx, v.Assets.Garment, resolver),
		Result:  resolveRef(ctx, v.Assets.Result, resolver),
	}

	if v.Actions.CanDownload.Allowed && (v.Assets.Result == nil || !v.Assets.Result.Available) {
		v.Actions.CanDownload = Action{Reason: reasonNoResult}
	}

	return v
}

func resolveRef(ctx context.Context, ref *AssetRef, resolver URLResolver) *AssetRef {
	if ref == nil {
		return nil
	}

	out := *ref

	signed := resolver.Lookup(ctx, ref.Bucket, ref.Path, false)
	out.Available = signed.Available

	if signed.Available {
		out.URL = signed.URL
		expires := signed.ExpiresAt
		out.ExpiresAt = &expires
	} else {
		out.URL = ""
		out.ExpiresAt = nil
	}

	return &out
}
