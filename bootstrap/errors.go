package bootstrap

import (
	apperrors "github.com/jrsteele09/go-module-shell/internal/errors"
)

var (
	errNoRefresher    = apperrors.Wrapf(apperrors.ErrRefreshFailed, "no refresher configured")
	errNoToken        = apperrors.Wrapf(apperrors.ErrRefreshFailed, "refresh returned no access token")
	errRefresherPanic = apperrors.Wrapf(apperrors.ErrRefreshFailed, "refresher panicked")
)
