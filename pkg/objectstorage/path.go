package objectstorage

func GetStagingPathOfAsset(tenantUID, assetUID, fileExt string) string {
	return tenantUID + "/staging/" + assetUID + "." + fileExt
}

func GetPermanentPathOfAsset(tenantUID, assetUID, fileExt string) string {
	return tenantUID + "/asset/" + assetUID + "." + fileExt
}

func GetThumbnailPathOfAsset(tenantUID, assetUID, sizeName, encodingExt string) string {
	return tenantUID + "/thumbnail/" + assetUID + "/" + sizeName + "." + encodingExt
}
