//go:build darwin

package permissions

/*
#cgo LDFLAGS: -framework AVFoundation
#import <AVFoundation/AVFoundation.h>

int micAuthorizationStatus() {
    return (int)[AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
}

void micRequestAccess() {
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {}];
}
*/
import "C"

// AVAuthorizationStatus values line up with Status
func microphoneStatus() Status {
	return Status(C.micAuthorizationStatus())
}

func requestMicrophone() {
	C.micRequestAccess()
}
